package overlap

import (
	"sort"

	"daybook/internal/appointment"
)

// OutcomeKind classifies how a group resolution ended.
type OutcomeKind string

const (
	AutoResolved OutcomeKind = "auto-resolved"
	Unresolved   OutcomeKind = "unresolved"
)

// Reason is the resolution rule that decided a group.
type Reason string

const (
	// ReasonTentativeDropped: the winner was the only non-Tentative member.
	ReasonTentativeDropped Reason = "tentative-dropped"
	// ReasonPriority: a single member held the highest priority.
	ReasonPriority Reason = "priority"
	// ReasonPriorityTie: the highest priority was shared, manual resolution
	// is required.
	ReasonPriorityTie Reason = "priority-tie"
)

// Resolution assigns an outcome to every member of one overlap group.
// The resolver never mutates appointment data.
type Resolution struct {
	Group   Group
	Outcome OutcomeKind
	Reason  Reason

	// WinnerID is set for auto-resolved groups, empty otherwise.
	WinnerID string

	// Superseded lists members superseded by the winner.
	Superseded []string

	// Pending lists members awaiting manual resolution. For an unresolved
	// group every member stays pending; none is discarded.
	Pending []string
}

// Resolve applies the ordered resolution policy to one group:
//
//  1. Tentative members are deprioritized when any non-Tentative member
//     exists in the group (not removed if the entire group is Tentative).
//  2. The single highest-priority member among the remaining competitors
//     wins; the rest are superseded.
//  3. A tie at the highest priority leaves the group unresolved: every
//     member is reported for manual resolution.
//
// byID must contain every group member.
func Resolve(g Group, byID map[string]appointment.Appointment) Resolution {
	res := Resolution{Group: g}

	var tentative, competitors []appointment.Appointment
	for _, id := range g.Members {
		a := byID[id]
		if a.ShowAs == appointment.ShowAsTentative {
			tentative = append(tentative, a)
		} else {
			competitors = append(competitors, a)
		}
	}

	// Entire group tentative: nobody is deprioritized, priority decides.
	allTentative := len(competitors) == 0
	if allTentative {
		competitors = tentative
		tentative = nil
	}

	top := highestPriority(competitors)

	if len(top) > 1 {
		res.Outcome = Unresolved
		res.Reason = ReasonPriorityTie
		res.Pending = append(res.Pending, g.Members...)
		return res
	}

	winner := top[0]
	res.Outcome = AutoResolved
	res.WinnerID = winner.ID
	res.Reason = ReasonPriority
	if !allTentative && len(competitors) == 1 {
		res.Reason = ReasonTentativeDropped
	}

	for _, id := range g.Members {
		if id != winner.ID {
			res.Superseded = append(res.Superseded, id)
		}
	}
	sort.Strings(res.Superseded)

	return res
}

// highestPriority returns the competitors holding the maximum priority.
func highestPriority(appts []appointment.Appointment) []appointment.Appointment {
	var max appointment.Priority
	for _, a := range appts {
		if a.Priority > max {
			max = a.Priority
		}
	}
	var top []appointment.Appointment
	for _, a := range appts {
		if a.Priority == max {
			top = append(top, a)
		}
	}
	return top
}
