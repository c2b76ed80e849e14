package ics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"daybook/internal/appointment"
	"daybook/internal/errors"
)

// Client aggregates a user's ICS sources into the day fetch the engine
// consumes. It implements the engine's Source port.
type Client struct {
	fetcher *Fetcher
	sources map[string][]Source // by user id
	loc     *time.Location
	log     zerolog.Logger
}

// NewClient creates a calendar client for the given per-user sources.
// loc is the timezone that defines day boundaries.
func NewClient(cacheDir string, sources map[string][]Source, loc *time.Location, log zerolog.Logger) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		fetcher: NewFetcher(cacheDir, log),
		sources: sources,
		loc:     loc,
		log:     log,
	}
}

// FetchDay returns all appointments intersecting the given day for a user,
// with recurring events expanded to concrete instances. Any source failure
// fails the whole fetch: archiving from partial data would silently lose
// time.
func (c *Client) FetchDay(ctx context.Context, userID string, day time.Time) ([]appointment.Appointment, error) {
	sources, ok := c.sources[userID]
	if !ok {
		// A configuration gap, not a transient failure; retrying cannot help.
		return nil, errors.NewNotFound(fmt.Sprintf("calendar sources for user %q", userID))
	}

	// Next calendar midnight, not start+24h: DST transition days are 23 or
	// 25 hours long and a fixed-width window would clip the evening.
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.loc)
	dayEnd := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, c.loc)

	var out []appointment.Appointment
	for _, src := range sources {
		res, err := c.fetcher.FetchOne(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("calendar %s: %w", src.ID, err)
		}

		events, err := ParseICS(src, res.Body)
		if err != nil {
			return nil, fmt.Errorf("calendar %s: %w", src.ID, err)
		}

		appts := ExpandDay(events, dayStart, dayEnd)
		c.log.Debug().Str("calendar", src.ID).Str("user", userID).
			Int("events", len(events)).Int("instances", len(appts)).
			Msg("calendar expanded")
		out = append(out, appts...)
	}

	return out, nil
}
