// Package archive defines the immutable archive record produced by an
// archiving run and the SQLite store that persists whole-day batches.
package archive

import (
	"time"

	"daybook/internal/category"
	"daybook/internal/modification"
	"daybook/internal/overlap"
)

// Status is the archival outcome of one appointment.
type Status string

const (
	StatusArchived        Status = "archived"
	StatusSuperseded      Status = "superseded-by-overlap"
	StatusExcludedFree    Status = "excluded-free"
	StatusConflictPending Status = "conflict-pending"
)

// Flag marks a recoverable per-record condition. Flags never abort a run.
type Flag string

const (
	FlagCategoryInvalid       Flag = "category-invalid"
	FlagModificationUnmatched Flag = "modification-unmatched"
	FlagModificationAnomaly   Flag = "modification-anomaly"
)

// Record is the immutable snapshot of one appointment's resolved state for a
// single archived day. A record is never edited after the run that created
// it; a correction is a new run replacing the whole day.
type Record struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
	Day           string `json:"day"` // YYYY-MM-DD in the user's timezone
	CalendarID    string `json:"calendar_id"`

	Subject  string `json:"subject"`
	Location string `json:"location,omitempty"`

	// Start and End are the effective interval after modification
	// reconciliation; the original provider interval is kept alongside.
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	OriginalStart time.Time `json:"original_start"`
	OriginalEnd   time.Time `json:"original_end"`

	// MissedTime is the late-start delta carried for billing; the effective
	// interval is unchanged by it.
	MissedTime time.Duration `json:"missed_time,omitempty"`

	CategoryRaw string            `json:"category_raw,omitempty"`
	Category    category.Category `json:"category"`

	Status Status `json:"status"`
	Flags  []Flag `json:"flags,omitempty"`

	// ConflictGroupID is set when the appointment belonged to an overlap
	// group; empty otherwise.
	ConflictGroupID string `json:"conflict_group_id,omitempty"`

	// Modifications lists the consumed modifier links folded into this
	// record for audit purposes.
	Modifications []modification.Link `json:"modifications,omitempty"`
}

// HasFlag reports whether the record carries the given flag.
func (r Record) HasFlag(f Flag) bool {
	for _, have := range r.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// InvalidCategory describes one unparsable category surfaced for manual action.
type InvalidCategory struct {
	AppointmentID string `json:"appointment_id"`
	Raw           string `json:"raw"`
	Reason        string `json:"reason"`
}

// RunSummary is the result of one archiving run for a (user, day) pair.
// The run id is a ULID; it identifies the run, not the records, so re-runs
// over identical source data still produce identical record sets.
type RunSummary struct {
	RunID  string `json:"run_id"`
	UserID string `json:"user_id"`
	Day    string `json:"day"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Fetched    int `json:"fetched"`
	Duplicates int `json:"duplicates"`

	Counts map[Status]int `json:"counts"`

	InvalidCategories []InvalidCategory    `json:"invalid_categories,omitempty"`
	Conflicts         []overlap.Resolution `json:"conflicts,omitempty"`
	RejectedModifiers int                  `json:"rejected_modifiers,omitempty"`
}
