package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	"daybook/internal/appointment"
)

const defaultMaxOccurrencesPerEvent = 1000

// ExpandDay expands parsed events into the concrete appointment instances
// intersecting [rangeStart, rangeEnd). It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence with EXDATE exceptions
//   - RECURRENCE-ID overrides (the override replaces its base occurrence)
//
// All-day events carry no billable interval and are skipped. Instances of
// recurring events get an id of "<UID>/<start RFC3339>" so each occurrence is
// a distinct, stable appointment id.
func ExpandDay(events []ParsedEvent, rangeStart, rangeEnd time.Time) []appointment.Appointment {
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	var out []appointment.Appointment

	for uid, baseEvents := range baseByUID {
		overrides := overridesByUID[uid]
		for _, ev := range baseEvents {
			out = append(out, expandEvent(ev, overrides, rangeStart, rangeEnd)...)
		}
	}

	// Overrides replace base occurrences; ones that moved into the window
	// from outside still need to surface.
	for uid, overrides := range overridesByUID {
		recurring := false
		for _, base := range baseByUID[uid] {
			if base.RawRRule != "" {
				recurring = true
			}
		}
		if !recurring {
			continue
		}
		for _, ov := range overrides {
			if intersects(ov.Start, ov.End, rangeStart, rangeEnd) && !ov.Recurrence.Equal(ov.Start) {
				out = append(out, toAppointment(ov, ov.Start, ov.End, true))
			}
		}
	}

	return out
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, rangeStart, rangeEnd time.Time) []appointment.Appointment {
	if ev.RawRRule == "" {
		if !intersects(ev.Start, ev.End, rangeStart, rangeEnd) {
			return nil
		}
		return []appointment.Appointment{toAppointment(ev, ev.Start, ev.End, false)}
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}
	// Overridden occurrences are removed here and re-emitted from their
	// override events.
	for _, ov := range overrides {
		if ov.Recurrence != nil {
			set.ExDate(ov.Recurrence.In(ev.Start.Location()))
		}
	}

	// Pad the query window by the event duration so an occurrence starting
	// before the range but still running into it is found.
	dur := ev.End.Sub(ev.Start)
	queryStart := rangeStart.Add(-dur).In(ev.Start.Location())
	queryEnd := rangeEnd.In(ev.Start.Location())

	occTimes := set.Between(queryStart, queryEnd, true)
	if len(occTimes) > defaultMaxOccurrencesPerEvent {
		occTimes = occTimes[:defaultMaxOccurrencesPerEvent]
	}

	var out []appointment.Appointment
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		if !intersects(occStart, occEnd, rangeStart, rangeEnd) {
			continue
		}
		out = append(out, toAppointment(ev, occStart, occEnd, true))
	}

	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if intersects(ov.Start, ov.End, rangeStart, rangeEnd) && ov.Recurrence.Equal(ov.Start) {
			out = append(out, toAppointment(ov, ov.Start, ov.End, true))
		}
	}

	return out
}

// toAppointment converts a parsed event plus one concrete occurrence window
// into an engine appointment. Recurring instances get an id derived from the
// occurrence start so the same instance always maps to the same id.
func toAppointment(ev ParsedEvent, start, end time.Time, instance bool) appointment.Appointment {
	id := ev.UID
	if instance {
		id = ev.UID + "/" + start.UTC().Format(time.RFC3339)
	}
	return appointment.Appointment{
		ID:          id,
		Subject:     ev.Subject,
		CategoryRaw: ev.CategoryRaw,
		Start:       start,
		End:         end,
		Priority:    ev.Priority,
		ShowAs:      ev.ShowAs,
		Location:    ev.Location,
		IsPrivate:   ev.IsPrivate,
		CalendarID:  ev.Source.ID,
	}
}

// intersects reports whether [aStart, aEnd) intersects [bStart, bEnd).
func intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
