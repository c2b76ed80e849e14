package appointment

import (
	"testing"
	"time"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestOverlaps_HalfOpen(t *testing.T) {
	a := Appointment{ID: "a", Start: at(9, 0), End: at(10, 0)}
	b := Appointment{ID: "b", Start: at(10, 0), End: at(11, 0)}
	c := Appointment{ID: "c", Start: at(9, 30), End: at(10, 30)}

	if a.Overlaps(b) {
		t.Error("touching endpoints reported as overlap")
	}
	if !a.Overlaps(c) || !c.Overlaps(a) {
		t.Error("intersecting intervals not reported as overlap")
	}
}

func TestValidate(t *testing.T) {
	valid := Appointment{ID: "a", Start: at(9, 0), End: at(10, 0)}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}

	if err := (Appointment{Start: at(9, 0), End: at(10, 0)}).Validate(); err == nil {
		t.Error("empty id accepted")
	}
	if err := (Appointment{ID: "a", Start: at(10, 0), End: at(9, 0)}).Validate(); err == nil {
		t.Error("inverted interval accepted")
	}
	if err := (Appointment{ID: "a", Start: at(9, 0), End: at(9, 0)}).Validate(); err == nil {
		t.Error("zero-length interval accepted")
	}
}

func TestDedupe(t *testing.T) {
	appts := []Appointment{
		{ID: "a", Subject: "first"},
		{ID: "b"},
		{ID: "a", Subject: "second"},
	}

	out, dropped := Dedupe(appts)

	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if len(out) != 2 {
		t.Fatalf("survivors = %d, want 2", len(out))
	}
	if out[0].Subject != "first" {
		t.Errorf("kept Subject = %q, want the first occurrence", out[0].Subject)
	}
}

func TestSortByStart_TieBreakByID(t *testing.T) {
	appts := []Appointment{
		{ID: "b", Start: at(9, 0)},
		{ID: "a", Start: at(9, 0)},
		{ID: "c", Start: at(8, 0)},
	}

	SortByStart(appts)

	want := []string{"c", "a", "b"}
	for i, id := range want {
		if appts[i].ID != id {
			t.Errorf("appts[%d].ID = %q, want %q", i, appts[i].ID, id)
		}
	}
}

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{
		"low":    PriorityLow,
		"Normal": PriorityNormal,
		" HIGH ": PriorityHigh,
	}
	for s, want := range cases {
		got, err := ParsePriority(s)
		if err != nil {
			t.Errorf("ParsePriority(%q) failed: %v", s, err)
			continue
		}
		if got != want {
			t.Errorf("ParsePriority(%q) = %v, want %v", s, got, want)
		}
	}

	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("unknown priority accepted")
	}
}

func TestPriority_Ordering(t *testing.T) {
	if !(PriorityLow < PriorityNormal && PriorityNormal < PriorityHigh) {
		t.Error("priority ordering is not low < normal < high")
	}
}

func TestParseShowAs(t *testing.T) {
	cases := map[string]ShowAs{
		"free":          ShowAsFree,
		"Tentative":     ShowAsTentative,
		"busy":          ShowAsBusy,
		"out-of-office": ShowAsOutOfOffice,
		"oof":           ShowAsOutOfOffice,
	}
	for s, want := range cases {
		got, err := ParseShowAs(s)
		if err != nil {
			t.Errorf("ParseShowAs(%q) failed: %v", s, err)
			continue
		}
		if got != want {
			t.Errorf("ParseShowAs(%q) = %q, want %q", s, got, want)
		}
	}

	if _, err := ParseShowAs("away"); err == nil {
		t.Error("unknown show-as accepted")
	}
}
