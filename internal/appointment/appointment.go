// Package appointment defines the calendar appointment model consumed by the
// archiving engine. Appointments are read-only inputs; the engine derives
// effective intervals and archive records from them without mutating the
// provider's data.
package appointment

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Priority is a strictly ordered appointment priority.
// Higher values win overlap resolution; the ordering is total, there is no
// unknown case treated implicitly as lowest.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
)

// String returns the canonical priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority parses a priority name. Unknown names are an error, not a
// silent default.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// ShowAs is the calendar free/busy status of an appointment.
type ShowAs string

const (
	ShowAsFree        ShowAs = "free"
	ShowAsTentative   ShowAs = "tentative"
	ShowAsBusy        ShowAs = "busy"
	ShowAsOutOfOffice ShowAs = "out-of-office"
)

// ParseShowAs parses a show-as name.
func ParseShowAs(s string) (ShowAs, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return ShowAsFree, nil
	case "tentative":
		return ShowAsTentative, nil
	case "busy":
		return ShowAsBusy, nil
	case "out-of-office", "oof":
		return ShowAsOutOfOffice, nil
	}
	return "", fmt.Errorf("unknown show-as %q", s)
}

// Appointment is one concrete calendar appointment for a single day.
// Recurring events are expected to arrive already expanded to instances.
type Appointment struct {
	// ID is the provider-scoped appointment id (opaque).
	ID string

	Subject     string
	CategoryRaw string

	// Start and End are timezone-aware instants; Start < End always holds
	// for appointments accepted by the engine.
	Start time.Time
	End   time.Time

	Priority Priority
	ShowAs   ShowAs

	Location  string
	IsPrivate bool

	// CalendarID identifies the source calendar the appointment came from.
	CalendarID string
}

// Duration returns the appointment's interval length.
func (a Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Overlaps reports whether the two appointment intervals intersect.
// Intervals are half-open [Start, End): touching endpoints do not overlap.
func (a Appointment) Overlaps(b Appointment) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Validate checks the interval invariant.
func (a Appointment) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("appointment has empty id")
	}
	if !a.Start.Before(a.End) {
		return fmt.Errorf("appointment %s: start %s is not before end %s", a.ID, a.Start, a.End)
	}
	return nil
}

// Dedupe removes appointments whose provider id was already seen, keeping the
// first occurrence. Returns the surviving appointments and the number of
// duplicates dropped. Duplicate ids are a pass-through defect of the source,
// not a conflict.
func Dedupe(appts []Appointment) ([]Appointment, int) {
	seen := make(map[string]bool, len(appts))
	out := make([]Appointment, 0, len(appts))
	dropped := 0

	for _, a := range appts {
		if seen[a.ID] {
			dropped++
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}

	return out, dropped
}

// SortByStart orders appointments by start time, breaking ties by id so the
// ordering is deterministic across runs.
func SortByStart(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].Start.Equal(appts[j].Start) {
			return appts[i].Start.Before(appts[j].Start)
		}
		return appts[i].ID < appts[j].ID
	})
}
