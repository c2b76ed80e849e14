package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"daybook/internal/appointment"
)

// ParsedEvent is the normalized representation of a VEVENT. Recurrence
// expansion operates on this type; see expand.go.
type ParsedEvent struct {
	Source Source

	UID      string
	Subject  string
	Location string

	Start  time.Time
	End    time.Time
	AllDay bool

	CategoryRaw string
	Priority    appointment.Priority
	ShowAs      appointment.ShowAs
	IsPrivate   bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT overrides a recurring instance
}

// ParseICS parses an ICS payload into ParsedEvents. Individual malformed
// VEVENTs are skipped; the rest of the calendar still parses.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Subject = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	start, _ := ve.GetStartAt()
	end, _ := ve.GetEndAt()
	out.Start = start
	out.End = end

	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		if params := dtStartProp.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.AllDay = true
			}
		}
		if !strings.Contains(dtStartProp.Value, "T") {
			out.AllDay = true
		}
	}

	// CATEGORIES carries the raw "<customer> - <billing-type>" string.
	if p := ve.GetProperty("CATEGORIES"); p != nil {
		out.CategoryRaw = p.Value
	}

	out.Priority = parsePriority(ve)
	out.ShowAs = parseShowAs(ve)

	if p := ve.GetProperty("CLASS"); p != nil {
		out.IsPrivate = strings.EqualFold(strings.TrimSpace(p.Value), "PRIVATE")
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parsePriority maps the RFC 5545 PRIORITY value (0..9) onto the engine's
// three-level priority: 1-4 high, 0 and 5 normal, 6-9 low.
func parsePriority(ve *ical.VEvent) appointment.Priority {
	p := ve.GetProperty("PRIORITY")
	if p == nil {
		return appointment.PriorityNormal
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err != nil {
		return appointment.PriorityNormal
	}
	switch {
	case n >= 1 && n <= 4:
		return appointment.PriorityHigh
	case n >= 6 && n <= 9:
		return appointment.PriorityLow
	default:
		return appointment.PriorityNormal
	}
}

// parseShowAs prefers the Outlook busy-status extension and falls back to
// TRANSP (TRANSPARENT means the event does not block time).
func parseShowAs(ve *ical.VEvent) appointment.ShowAs {
	if p := ve.GetProperty("X-MICROSOFT-CDO-BUSYSTATUS"); p != nil {
		switch strings.ToUpper(strings.TrimSpace(p.Value)) {
		case "FREE":
			return appointment.ShowAsFree
		case "TENTATIVE":
			return appointment.ShowAsTentative
		case "OOF":
			return appointment.ShowAsOutOfOffice
		case "BUSY":
			return appointment.ShowAsBusy
		}
	}
	if p := ve.GetProperty("TRANSP"); p != nil {
		if strings.EqualFold(strings.TrimSpace(p.Value), "TRANSPARENT") {
			return appointment.ShowAsFree
		}
	}
	return appointment.ShowAsBusy
}

// parseICSTime parses a basic ICS date/date-time string.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		const layout = "20060102T150405Z"
		return time.Parse(layout, v)
	}
	if strings.Contains(v, "T") {
		const layout = "20060102T150405"
		return time.ParseInLocation(layout, v, time.Local)
	}
	const layoutDate = "20060102"
	return time.ParseInLocation(layoutDate, v, time.Local)
}
