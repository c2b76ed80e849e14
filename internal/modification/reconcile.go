// Package modification reconciles modification-marker appointments
// (extensions, shortenings, early and late starts) back into the
// appointments they modify, producing effective intervals for archiving.
package modification

import (
	"fmt"
	"sort"
	"time"

	"daybook/internal/appointment"
	"daybook/internal/category"
)

// Link records one consumed modifier: which base it adjusted, how, and by
// how much. Links are folded into the resulting archive records; they are
// never persisted standalone.
type Link struct {
	BaseID     string        `json:"base_id"`
	ModifierID string        `json:"modifier_id"`
	Kind       Kind          `json:"-"`
	KindName   string        `json:"kind"`
	Delta      time.Duration `json:"delta"`
}

// Rejection records a modifier that could not be applied. Rejected modifiers
// stay in the working set and are archived standalone, never silently dropped.
type Rejection struct {
	ModifierID string
	Kind       Kind
	Reason     string

	// Anomaly is true when a base was found but the merge would have
	// violated the base interval invariant (e.g. shortening past the start).
	Anomaly bool
}

// Result is the outcome of reconciling one day's working set.
type Result struct {
	// Appointments holds the working set with effective intervals: bases
	// adjusted by their consumed modifiers, rejected modifiers kept as-is,
	// consumed modifiers removed.
	Appointments []appointment.Appointment

	// MissedTime holds late-start deltas per base appointment id. The base
	// interval is unchanged; the delta is carried for billing.
	MissedTime map[string]time.Duration

	Links      []Link
	Rejections []Rejection
}

// modifier pairs a marker appointment with its classification.
type modifier struct {
	appt appointment.Appointment
	kind Kind
}

// applyKey identifies one applied modifier window. Calendar and customer pin
// the key to the base the window targeted, so duplicate modifiers with the
// same key collapse to a single application.
type applyKey struct {
	calendarID string
	customer   string
	kind       Kind
	start, end int64
}

// Reconcile detects modification markers in appts, matches each to its base
// appointment (same calendar, same parsed customer, temporally adjacent), and
// merges the time delta into the base's effective interval.
//
// categories maps appointment id to its parsed category; matching uses the
// customer segment. The per-modifier state machine is Pending -> Merged
// (consumed, link emitted) or Pending -> Rejected (kept standalone).
func Reconcile(appts []appointment.Appointment, categories map[string]category.Category) Result {
	result := Result{
		MissedTime: make(map[string]time.Duration),
	}

	bases := make([]appointment.Appointment, 0, len(appts))
	var mods []modifier

	for _, a := range appts {
		if k := Classify(a.Subject, a.Priority); k != None {
			mods = append(mods, modifier{appt: a, kind: k})
			continue
		}
		bases = append(bases, a)
	}

	if len(mods) == 0 {
		result.Appointments = bases
		return result
	}

	// Deterministic application order: by start, then id.
	sort.Slice(mods, func(i, j int) bool {
		if !mods[i].appt.Start.Equal(mods[j].appt.Start) {
			return mods[i].appt.Start.Before(mods[j].appt.Start)
		}
		return mods[i].appt.ID < mods[j].appt.ID
	})

	applied := make(map[applyKey]Link)

	for _, m := range mods {
		customer := categories[m.appt.ID].Customer

		key := applyKey{
			calendarID: m.appt.CalendarID,
			customer:   customer,
			kind:       m.kind,
			start:      m.appt.Start.UnixNano(),
			end:        m.appt.End.UnixNano(),
		}

		// Duplicate of an already-applied modifier window: consume without
		// applying twice.
		if link, ok := applied[key]; ok {
			dup := link
			dup.ModifierID = m.appt.ID
			result.Links = append(result.Links, dup)
			continue
		}

		idx := matchBase(bases, m, customer, categories)
		if idx < 0 {
			result.Rejections = append(result.Rejections, Rejection{
				ModifierID: m.appt.ID,
				Kind:       m.kind,
				Reason:     "no adjacent base appointment found",
			})
			bases = append(bases, m.appt)
			continue
		}

		base := &bases[idx]
		dur := m.appt.Duration()

		var link Link
		switch m.kind {
		case Extension:
			base.End = base.End.Add(dur)
			link = Link{BaseID: base.ID, ModifierID: m.appt.ID, Kind: m.kind, KindName: m.kind.String(), Delta: dur}
		case Shortened:
			newEnd := base.End.Add(-dur)
			if !newEnd.After(base.Start) {
				result.Rejections = append(result.Rejections, Rejection{
					ModifierID: m.appt.ID,
					Kind:       m.kind,
					Reason:     fmt.Sprintf("shortening %s past base start", dur),
					Anomaly:    true,
				})
				bases = append(bases, m.appt)
				continue
			}
			base.End = newEnd
			link = Link{BaseID: base.ID, ModifierID: m.appt.ID, Kind: m.kind, KindName: m.kind.String(), Delta: -dur}
		case EarlyStart:
			base.Start = base.Start.Add(-dur)
			link = Link{BaseID: base.ID, ModifierID: m.appt.ID, Kind: m.kind, KindName: m.kind.String(), Delta: dur}
		case LateStart:
			// Base interval unchanged; the lost head time is carried as a
			// billing attribute on the base record.
			result.MissedTime[base.ID] += dur
			link = Link{BaseID: base.ID, ModifierID: m.appt.ID, Kind: m.kind, KindName: m.kind.String(), Delta: dur}
		}

		applied[key] = link
		result.Links = append(result.Links, link)
	}

	result.Appointments = bases
	return result
}

// matchBase finds the base appointment a modifier is adjacent to: same source
// calendar, same parsed customer, interval adjacency per kind against the
// base's current effective interval. Candidates are scanned in slice order,
// which SortByStart has already made deterministic.
func matchBase(bases []appointment.Appointment, m modifier, customer string, categories map[string]category.Category) int {
	for i, b := range bases {
		if b.CalendarID != m.appt.CalendarID {
			continue
		}
		if categories[b.ID].Customer != customer {
			continue
		}
		if adjacent(b, m) {
			return i
		}
	}
	return -1
}

// adjacent implements the temporal adjacency rule per modifier kind.
func adjacent(base appointment.Appointment, m modifier) bool {
	switch m.kind {
	case Extension:
		return base.End.Equal(m.appt.Start)
	case Shortened:
		// The modifier occupies the tail of the base. A marker covering the
		// whole base still matches; Reconcile rejects it as an anomaly.
		return m.appt.End.Equal(base.End) && !m.appt.Start.Before(base.Start) && m.appt.Start.Before(base.End)
	case EarlyStart:
		return m.appt.End.Equal(base.Start)
	case LateStart:
		// Lost time at the head of the base.
		return m.appt.Start.Equal(base.Start) && !m.appt.End.After(base.End)
	}
	return false
}
