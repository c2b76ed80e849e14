package modification

import (
	"testing"
	"time"

	"daybook/internal/appointment"
	"daybook/internal/category"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

// at returns an instant h:mm on the test day.
func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func base(id, customer string, start, end time.Time) appointment.Appointment {
	return appointment.Appointment{
		ID:          id,
		Subject:     "Session " + customer,
		CategoryRaw: customer + " - billable",
		Start:       start,
		End:         end,
		Priority:    appointment.PriorityNormal,
		ShowAs:      appointment.ShowAsBusy,
		CalendarID:  "work",
	}
}

func marker(id, subject, customer string, start, end time.Time) appointment.Appointment {
	return appointment.Appointment{
		ID:          id,
		Subject:     subject,
		CategoryRaw: customer + " - billable",
		Start:       start,
		End:         end,
		Priority:    appointment.PriorityLow,
		ShowAs:      appointment.ShowAsBusy,
		CalendarID:  "work",
	}
}

func categorize(t *testing.T, appts []appointment.Appointment) map[string]category.Category {
	t.Helper()
	cats := make(map[string]category.Category, len(appts))
	for _, a := range appts {
		cat, err := category.Parse(a.CategoryRaw, a.IsPrivate)
		if err != nil {
			t.Fatalf("category.Parse(%q) failed: %v", a.CategoryRaw, err)
		}
		cats[a.ID] = cat
	}
	return cats
}

func findByID(t *testing.T, appts []appointment.Appointment, id string) appointment.Appointment {
	t.Helper()
	for _, a := range appts {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("appointment %s not in working set", id)
	return appointment.Appointment{}
}

func TestReconcile_Extension(t *testing.T) {
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Extension", "Acme", at(10, 0), at(10, 30)),
	}

	result := Reconcile(appts, categorize(t, appts))

	if len(result.Appointments) != 1 {
		t.Fatalf("working set size = %d, want 1 (marker consumed)", len(result.Appointments))
	}
	got := findByID(t, result.Appointments, "b1")
	if !got.End.Equal(at(10, 30)) {
		t.Errorf("End = %v, want %v", got.End, at(10, 30))
	}
	if !got.Start.Equal(at(9, 0)) {
		t.Errorf("Start = %v, want unchanged %v", got.Start, at(9, 0))
	}
	if len(result.Links) != 1 {
		t.Fatalf("Links = %d, want 1", len(result.Links))
	}
	link := result.Links[0]
	if link.BaseID != "b1" || link.ModifierID != "m1" || link.Kind != Extension {
		t.Errorf("Link = %+v, want b1/m1/Extension", link)
	}
	if link.Delta != 30*time.Minute {
		t.Errorf("Delta = %v, want 30m", link.Delta)
	}
}

func TestReconcile_Shortened(t *testing.T) {
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Shortened", "Acme", at(9, 45), at(10, 0)),
	}

	result := Reconcile(appts, categorize(t, appts))

	got := findByID(t, result.Appointments, "b1")
	if !got.End.Equal(at(9, 45)) {
		t.Errorf("End = %v, want %v", got.End, at(9, 45))
	}
	if len(result.Links) != 1 {
		t.Fatalf("Links = %d, want 1", len(result.Links))
	}
	if result.Links[0].Delta != -15*time.Minute {
		t.Errorf("Delta = %v, want -15m", result.Links[0].Delta)
	}
}

func TestReconcile_ShortenedPastStart_Anomaly(t *testing.T) {
	// A shortening marker covering the whole base would leave a zero-length
	// interval. The marker is rejected with the anomaly bit, not applied.
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Shortened", "Acme", at(9, 0), at(10, 0)),
	}

	result := Reconcile(appts, categorize(t, appts))

	got := findByID(t, result.Appointments, "b1")
	if !got.End.Equal(at(10, 0)) {
		t.Errorf("End = %v, want unchanged %v", got.End, at(10, 0))
	}
	if len(result.Rejections) != 1 {
		t.Fatalf("Rejections = %d, want 1", len(result.Rejections))
	}
	rej := result.Rejections[0]
	if rej.ModifierID != "m1" || !rej.Anomaly {
		t.Errorf("Rejection = %+v, want m1 with Anomaly", rej)
	}
	// The rejected marker stays in the working set.
	findByID(t, result.Appointments, "m1")
}

func TestReconcile_EarlyStart(t *testing.T) {
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Early Start", "Acme", at(8, 40), at(9, 0)),
	}

	result := Reconcile(appts, categorize(t, appts))

	got := findByID(t, result.Appointments, "b1")
	if !got.Start.Equal(at(8, 40)) {
		t.Errorf("Start = %v, want %v", got.Start, at(8, 40))
	}
	if !got.End.Equal(at(10, 0)) {
		t.Errorf("End = %v, want unchanged %v", got.End, at(10, 0))
	}
}

func TestReconcile_LateStart_MissedTime(t *testing.T) {
	// Late start leaves the interval alone and carries the lost head time
	// separately for billing.
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Late Start", "Acme", at(9, 0), at(9, 20)),
	}

	result := Reconcile(appts, categorize(t, appts))

	got := findByID(t, result.Appointments, "b1")
	if !got.Start.Equal(at(9, 0)) || !got.End.Equal(at(10, 0)) {
		t.Errorf("interval = [%v, %v), want unchanged", got.Start, got.End)
	}
	if result.MissedTime["b1"] != 20*time.Minute {
		t.Errorf("MissedTime[b1] = %v, want 20m", result.MissedTime["b1"])
	}
}

func TestReconcile_UnmatchedMarker_Rejected(t *testing.T) {
	// No base is adjacent to the marker: it is kept standalone, not dropped.
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Extension", "Acme", at(11, 0), at(11, 30)),
	}

	result := Reconcile(appts, categorize(t, appts))

	if len(result.Appointments) != 2 {
		t.Fatalf("working set size = %d, want 2", len(result.Appointments))
	}
	if len(result.Rejections) != 1 {
		t.Fatalf("Rejections = %d, want 1", len(result.Rejections))
	}
	if result.Rejections[0].Anomaly {
		t.Error("Anomaly = true, want false for a plain unmatched marker")
	}
	got := findByID(t, result.Appointments, "b1")
	if !got.End.Equal(at(10, 0)) {
		t.Errorf("End = %v, want unchanged", got.End)
	}
}

func TestReconcile_CustomerMustMatch(t *testing.T) {
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Extension", "Beta", at(10, 0), at(10, 30)),
	}

	result := Reconcile(appts, categorize(t, appts))

	if len(result.Rejections) != 1 {
		t.Fatalf("Rejections = %d, want 1 (customer mismatch)", len(result.Rejections))
	}
	got := findByID(t, result.Appointments, "b1")
	if !got.End.Equal(at(10, 0)) {
		t.Errorf("End = %v, want unchanged", got.End)
	}
}

func TestReconcile_CalendarMustMatch(t *testing.T) {
	m := marker("m1", "Extension", "Acme", at(10, 0), at(10, 30))
	m.CalendarID = "personal"
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		m,
	}

	result := Reconcile(appts, categorize(t, appts))

	if len(result.Rejections) != 1 {
		t.Fatalf("Rejections = %d, want 1 (calendar mismatch)", len(result.Rejections))
	}
}

func TestReconcile_DuplicateMarkers_AppliedOnce(t *testing.T) {
	// Two identical extension windows for the same base: the delta is
	// applied once, both markers consumed, both linked.
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Extension", "Acme", at(10, 0), at(10, 30)),
		marker("m2", "Extension", "Acme", at(10, 0), at(10, 30)),
	}

	result := Reconcile(appts, categorize(t, appts))

	got := findByID(t, result.Appointments, "b1")
	if !got.End.Equal(at(10, 30)) {
		t.Errorf("End = %v, want %v (single application)", got.End, at(10, 30))
	}
	if len(result.Appointments) != 1 {
		t.Errorf("working set size = %d, want 1 (both markers consumed)", len(result.Appointments))
	}
	if len(result.Links) != 2 {
		t.Fatalf("Links = %d, want 2", len(result.Links))
	}
	for _, link := range result.Links {
		if link.BaseID != "b1" {
			t.Errorf("Link.BaseID = %q, want b1", link.BaseID)
		}
	}
}

func TestReconcile_ChainedMarkers(t *testing.T) {
	// An extension moves the base's effective end; a second extension
	// adjacent to the new end chains onto it.
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		marker("m1", "Extension", "Acme", at(10, 0), at(10, 30)),
		marker("m2", "Extension", "Acme", at(10, 30), at(11, 0)),
	}

	result := Reconcile(appts, categorize(t, appts))

	got := findByID(t, result.Appointments, "b1")
	if !got.End.Equal(at(11, 0)) {
		t.Errorf("End = %v, want %v", got.End, at(11, 0))
	}
	if len(result.Links) != 2 {
		t.Errorf("Links = %d, want 2", len(result.Links))
	}
}

func TestReconcile_NoMarkers_PassThrough(t *testing.T) {
	appts := []appointment.Appointment{
		base("b1", "Acme", at(9, 0), at(10, 0)),
		base("b2", "Beta", at(11, 0), at(12, 0)),
	}

	result := Reconcile(appts, categorize(t, appts))

	if len(result.Appointments) != 2 {
		t.Errorf("working set size = %d, want 2", len(result.Appointments))
	}
	if len(result.Links) != 0 || len(result.Rejections) != 0 {
		t.Errorf("Links = %d, Rejections = %d, want 0/0", len(result.Links), len(result.Rejections))
	}
}
