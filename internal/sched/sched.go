// Package sched triggers archiving runs on a cron schedule, fanning out over
// users through a bounded worker pool. Engine runs share no mutable state, so
// per-user parallelism needs no locking.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"daybook/internal/config"
	"daybook/internal/engine"
)

// Scheduler runs the engine for every configured user on a cron schedule.
type Scheduler struct {
	eng *engine.Engine
	cfg *config.Config
	loc *time.Location
	log zerolog.Logger
}

// New creates a scheduler.
func New(eng *engine.Engine, cfg *config.Config, loc *time.Location, log zerolog.Logger) *Scheduler {
	return &Scheduler{eng: eng, cfg: cfg, loc: loc, log: log}
}

// Start registers the cron schedule and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))

	_, err := c.AddFunc(s.cfg.Schedule, func() {
		day := time.Now().In(s.loc).AddDate(0, 0, -s.cfg.DayOffset)
		s.ArchiveAll(ctx, day)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("schedule", s.cfg.Schedule).Int("users", len(s.cfg.Users)).Msg("scheduler started")
	c.Start()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// ArchiveAll archives one day for every configured user, at most
// MaxConcurrentRuns in flight. Per-user failures are logged and counted, not
// propagated: one user's broken calendar must not block the rest.
func (s *Scheduler) ArchiveAll(ctx context.Context, day time.Time) (succeeded, failed int) {
	sem := make(chan struct{}, s.cfg.MaxConcurrentRuns)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, u := range s.cfg.Users {
		select {
		case <-ctx.Done():
			wg.Wait()
			return succeeded, failed
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := s.eng.Run(ctx, userID, day)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.log.Error().Err(err).Str("user", userID).Msg("scheduled run failed")
				return
			}
			succeeded++
		}(u.ID)
	}

	wg.Wait()
	return succeeded, failed
}
