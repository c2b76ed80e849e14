package modification

import (
	"strings"

	"daybook/internal/appointment"
)

// Kind is the closed classification of modification-marker appointments.
type Kind int

const (
	None Kind = iota
	Extension
	Shortened
	EarlyStart
	LateStart
)

// String returns the canonical marker keyword for the kind.
func (k Kind) String() string {
	switch k {
	case Extension:
		return "Extension"
	case Shortened:
		return "Shortened"
	case EarlyStart:
		return "Early Start"
	case LateStart:
		return "Late Start"
	}
	return "None"
}

// keywords maps normalized marker subjects to their kind. All string matching
// for modification detection lives here; the reconciliation algorithm only
// sees Kind values.
var keywords = map[string]Kind{
	"extension":   Extension,
	"shortened":   Shortened,
	"early start": EarlyStart,
	"late start":  LateStart,
}

// Classify detects whether an appointment is a modification marker.
// A marker has one of the fixed keywords as its subject (trimmed,
// case-insensitive) and Low priority. Everything else is None.
func Classify(subject string, p appointment.Priority) Kind {
	if p != appointment.PriorityLow {
		return None
	}
	return keywords[strings.ToLower(strings.TrimSpace(subject))]
}
