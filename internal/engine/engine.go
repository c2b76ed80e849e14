// Package engine orchestrates one archiving run: fetch, dedupe, categorize,
// reconcile modifications, detect and resolve overlaps, commit the immutable
// whole-day record batch.
package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"daybook/internal/appointment"
	"daybook/internal/archive"
	"daybook/internal/category"
	"daybook/internal/errors"
	"daybook/internal/modification"
	"daybook/internal/overlap"
)

// Stage names one step of the run state machine; used for logging and for
// attributing aborts.
type Stage string

const (
	StageFetched         Stage = "fetched"
	StageDeduped         Stage = "deduped"
	StageCategorized     Stage = "categorized"
	StageReconciled      Stage = "reconciled"
	StageOverlapResolved Stage = "overlap-resolved"
	StageCommitted       Stage = "committed"
	StageAborted         Stage = "aborted"
)

// Source fetches all appointments intersecting one (user, day) pair.
// Recurring events must arrive already expanded to concrete instances.
type Source interface {
	FetchDay(ctx context.Context, userID string, day time.Time) ([]appointment.Appointment, error)
}

// Store commits the whole-day record batch atomically and records run
// summaries.
type Store interface {
	ReplaceDay(ctx context.Context, userID, day string, records []archive.Record) error
	InsertRun(ctx context.Context, summary archive.RunSummary) error
}

// Sink receives the conflict report of a run. Best-effort: a sink failure is
// logged, never aborts the run.
type Sink interface {
	Report(ctx context.Context, summary archive.RunSummary) error
}

// Engine runs the archiving pipeline for one (user, day) at a time. It is
// stateless between runs; a caller may run one engine per user concurrently.
type Engine struct {
	src   Source
	store Store
	sink  Sink
	log   zerolog.Logger
	retry RetryConfig
}

// New creates an engine wired to its collaborators.
func New(src Source, store Store, sink Sink, log zerolog.Logger, retry RetryConfig) *Engine {
	return &Engine{
		src:   src,
		store: store,
		sink:  sink,
		log:   log,
		retry: retry,
	}
}

// DayFormat is the canonical day key format.
const DayFormat = "2006-01-02"

// Run executes one archiving run for a (user, day) pair. Per-appointment
// conditions (invalid categories, unmatched modifiers, unresolved overlaps)
// become record flags; only exhausted collaborator retries abort the run.
// Re-running over identical source data produces an identical record set.
func (e *Engine) Run(ctx context.Context, userID string, day time.Time) (*archive.RunSummary, error) {
	dayKey := day.Format(DayFormat)
	runID := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	log := e.log.With().Str("run", runID).Str("user", userID).Str("day", dayKey).Logger()
	summary := &archive.RunSummary{
		RunID:     runID,
		UserID:    userID,
		Day:       dayKey,
		StartedAt: time.Now().UTC(),
		Counts:    make(map[archive.Status]int),
	}

	// Fetched: the only suspension points of a run are this fetch and the
	// commit below; both are retried with backoff and bounded by ctx.
	var fetched []appointment.Appointment
	err := withRetry(ctx, e.retry, func() error {
		var ferr error
		fetched, ferr = e.src.FetchDay(ctx, userID, day)
		if ferr != nil {
			// Sources that already classified the failure keep their
			// classification; permanent errors must not be retried.
			if derr, ok := ferr.(*errors.Error); ok {
				return derr
			}
			return errors.NewCollaboratorFetch(ferr)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("stage", string(StageAborted)).Msg("fetch failed, run aborted")
		return nil, err
	}
	summary.Fetched = len(fetched)
	log.Debug().Int("count", len(fetched)).Str("stage", string(StageFetched)).Msg("appointments fetched")

	// Deduped: repeated provider ids are a pass-through defect, not a
	// conflict; drop and count them.
	appts, dropped := appointment.Dedupe(fetched)
	summary.Duplicates = dropped
	appointment.SortByStart(appts)
	log.Debug().Int("dropped", dropped).Str("stage", string(StageDeduped)).Msg("duplicates dropped")

	// Categorized.
	categories := make(map[string]category.Category, len(appts))
	invalid := make(map[string]string)
	for _, a := range appts {
		cat, cerr := category.Parse(a.CategoryRaw, a.IsPrivate)
		categories[a.ID] = cat
		if cerr != nil {
			invalid[a.ID] = cerr.Error()
		}
	}
	log.Debug().Int("invalid", len(invalid)).Str("stage", string(StageCategorized)).Msg("categories parsed")

	// Reconciled: fold modification markers into their bases.
	originals := make(map[string]appointment.Appointment, len(appts))
	for _, a := range appts {
		originals[a.ID] = a
	}
	recon := modification.Reconcile(appts, categories)
	summary.RejectedModifiers = len(recon.Rejections)
	rejected := make(map[string]modification.Rejection, len(recon.Rejections))
	for _, rej := range recon.Rejections {
		rejected[rej.ModifierID] = rej
		log.Warn().Str("modifier", rej.ModifierID).Str("kind", rej.Kind.String()).
			Str("reason", rej.Reason).Msg("modifier rejected")
	}

	log.Debug().Int("links", len(recon.Links)).Int("rejections", len(recon.Rejections)).
		Str("stage", string(StageReconciled)).Msg("modifications reconciled")

	working := recon.Appointments
	appointment.SortByStart(working)
	byID := make(map[string]appointment.Appointment, len(working))
	for _, a := range working {
		byID[a.ID] = a
	}
	linksByBase := make(map[string][]modification.Link)
	baseByModifier := make(map[string]string)
	for _, link := range recon.Links {
		linksByBase[link.BaseID] = append(linksByBase[link.BaseID], link)
		baseByModifier[link.ModifierID] = link.BaseID
	}

	// Invalid categories are surfaced against ids that exist in the archive.
	// A consumed marker leaves no record of its own, so its defect is
	// reported on the base it was folded into.
	for _, a := range appts {
		reason, ok := invalid[a.ID]
		if !ok {
			continue
		}
		ic := archive.InvalidCategory{AppointmentID: a.ID, Raw: a.CategoryRaw, Reason: reason}
		if baseID, consumed := baseByModifier[a.ID]; consumed {
			ic.AppointmentID = baseID
			ic.Reason = fmt.Sprintf("%s (on consumed marker %s)", reason, a.ID)
		}
		summary.InvalidCategories = append(summary.InvalidCategories, ic)
	}

	// OverlapResolved.
	groups := overlap.Detect(working)
	statusByID := make(map[string]archive.Status, len(working))
	groupByID := make(map[string]string)
	for _, g := range groups {
		res := overlap.Resolve(g, byID)
		for _, id := range g.Members {
			groupByID[id] = g.ID
		}
		for _, id := range res.Superseded {
			statusByID[id] = archive.StatusSuperseded
		}
		if res.Outcome == overlap.Unresolved {
			for _, id := range res.Pending {
				statusByID[id] = archive.StatusConflictPending
			}
			summary.Conflicts = append(summary.Conflicts, res)
			log.Warn().Str("group", g.ID).Strs("members", g.Members).Msg("overlap unresolved, conflict pending")
			continue
		}
		statusByID[res.WinnerID] = archive.StatusArchived
	}
	log.Debug().Int("groups", len(groups)).Int("unresolved", len(summary.Conflicts)).
		Str("stage", string(StageOverlapResolved)).Msg("overlaps resolved")

	// Committed: build the full next-state batch in memory, then swap it in
	// as one transaction.
	records := make([]archive.Record, 0, len(working))
	for _, a := range working {
		status, ok := statusByID[a.ID]
		if !ok {
			status = archive.StatusArchived
		}
		if a.ShowAs == appointment.ShowAsFree {
			status = archive.StatusExcludedFree
		}

		rec := archive.Record{
			AppointmentID:   a.ID,
			UserID:          userID,
			Day:             dayKey,
			CalendarID:      a.CalendarID,
			Subject:         a.Subject,
			Location:        a.Location,
			Start:           a.Start,
			End:             a.End,
			OriginalStart:   originals[a.ID].Start,
			OriginalEnd:     originals[a.ID].End,
			MissedTime:      recon.MissedTime[a.ID],
			CategoryRaw:     a.CategoryRaw,
			Category:        categories[a.ID],
			Status:          status,
			ConflictGroupID: groupByID[a.ID],
			Modifications:   linksByBase[a.ID],
		}

		if _, bad := invalid[a.ID]; bad {
			rec.Flags = append(rec.Flags, archive.FlagCategoryInvalid)
		}
		if rej, was := rejected[a.ID]; was {
			if rej.Anomaly {
				rec.Flags = append(rec.Flags, archive.FlagModificationAnomaly)
			} else {
				rec.Flags = append(rec.Flags, archive.FlagModificationUnmatched)
			}
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Start.Equal(records[j].Start) {
			return records[i].Start.Before(records[j].Start)
		}
		return records[i].AppointmentID < records[j].AppointmentID
	})

	for _, r := range records {
		summary.Counts[r.Status]++
	}

	err = withRetry(ctx, e.retry, func() error {
		return e.store.ReplaceDay(ctx, userID, dayKey, records)
	})
	if err != nil {
		log.Error().Err(err).Str("stage", string(StageAborted)).Msg("commit failed, run aborted")
		return nil, err
	}

	summary.FinishedAt = time.Now().UTC()

	if err := e.store.InsertRun(ctx, *summary); err != nil {
		// The day batch is already committed; a lost summary row is not
		// worth aborting for.
		log.Error().Err(err).Msg("run summary insert failed")
	}

	if e.sink != nil {
		if err := e.sink.Report(ctx, *summary); err != nil {
			log.Error().Err(err).Msg("conflict report delivery failed")
		}
	}

	log.Info().
		Str("stage", string(StageCommitted)).
		Int("records", len(records)).
		Int("duplicates", summary.Duplicates).
		Int("conflicts", len(summary.Conflicts)).
		Int("invalid_categories", len(summary.InvalidCategories)).
		Msg("run committed")

	return summary, nil
}
