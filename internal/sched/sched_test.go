package sched

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"daybook/internal/appointment"
	"daybook/internal/archive"
	"daybook/internal/config"
	"daybook/internal/engine"
)

// userSource serves one appointment per user and fails for broken users.
type userSource struct {
	broken map[string]bool
}

func (s *userSource) FetchDay(_ context.Context, userID string, day time.Time) ([]appointment.Appointment, error) {
	if s.broken[userID] {
		return nil, fmt.Errorf("feed unreachable")
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, day.Location())
	return []appointment.Appointment{{
		ID: userID + "-a1", Subject: "Session", CategoryRaw: "Acme - billable",
		Start: start, End: start.Add(time.Hour),
		Priority: appointment.PriorityNormal, ShowAs: appointment.ShowAsBusy,
		CalendarID: "work",
	}}, nil
}

// memStore records committed days keyed by user.
type memStore struct {
	mu   sync.Mutex
	days map[string][]archive.Record
}

func (s *memStore) ReplaceDay(_ context.Context, userID, day string, records []archive.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[userID+"/"+day] = records
	return nil
}

func (s *memStore) InsertRun(_ context.Context, _ archive.RunSummary) error { return nil }

func testConfig(users ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxConcurrentRuns = 2
	for _, u := range users {
		cfg.Users = append(cfg.Users, config.UserConfig{
			ID:        u,
			Calendars: []config.CalendarConfig{{ID: "work", URL: "https://example.com/" + u + ".ics"}},
		})
	}
	return cfg
}

func quickRetry() engine.RetryConfig {
	return engine.RetryConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestArchiveAll_AllUsers(t *testing.T) {
	store := &memStore{days: make(map[string][]archive.Record)}
	eng := engine.New(&userSource{}, store, nil, zerolog.Nop(), quickRetry())
	cfg := testConfig("alice", "bob", "carol")

	s := New(eng, cfg, time.UTC, zerolog.Nop())
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	succeeded, failed := s.ArchiveAll(context.Background(), day)

	if succeeded != 3 || failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 3/0", succeeded, failed)
	}
	for _, u := range []string{"alice", "bob", "carol"} {
		if len(store.days[u+"/2026-03-10"]) != 1 {
			t.Errorf("user %s: day not committed", u)
		}
	}
}

func TestArchiveAll_OneUserFails_RestProceed(t *testing.T) {
	store := &memStore{days: make(map[string][]archive.Record)}
	src := &userSource{broken: map[string]bool{"bob": true}}
	eng := engine.New(src, store, nil, zerolog.Nop(), quickRetry())
	cfg := testConfig("alice", "bob", "carol")

	s := New(eng, cfg, time.UTC, zerolog.Nop())
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	succeeded, failed := s.ArchiveAll(context.Background(), day)

	if succeeded != 2 || failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 2/1", succeeded, failed)
	}
	if len(store.days["alice/2026-03-10"]) != 1 || len(store.days["carol/2026-03-10"]) != 1 {
		t.Error("healthy users blocked by bob's broken feed")
	}
	if _, ok := store.days["bob/2026-03-10"]; ok {
		t.Error("bob's day committed despite fetch failure")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	store := &memStore{days: make(map[string][]archive.Record)}
	eng := engine.New(&userSource{}, store, nil, zerolog.Nop(), quickRetry())
	cfg := testConfig("alice")

	s := New(eng, cfg, time.UTC, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after context cancel")
	}
}
