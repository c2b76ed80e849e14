package category

import (
	"testing"

	"daybook/internal/errors"
)

func TestParse_BillableCustomer(t *testing.T) {
	cat, err := Parse("Acme Corp - billable", false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cat.Customer != "Acme Corp" {
		t.Errorf("Customer = %q, want %q", cat.Customer, "Acme Corp")
	}
	if cat.Billing != Billable {
		t.Errorf("Billing = %q, want %q", cat.Billing, Billable)
	}
	if !cat.IsBillable() {
		t.Error("IsBillable = false, want true")
	}
}

func TestParse_NonBillable(t *testing.T) {
	cat, err := Parse("Acme Corp - non-billable", false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cat.Billing != NonBillable {
		t.Errorf("Billing = %q, want %q", cat.Billing, NonBillable)
	}
}

func TestParse_CaseInsensitiveBilling(t *testing.T) {
	cat, err := Parse("Acme - Billable", false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cat.Billing != Billable {
		t.Errorf("Billing = %q, want %q", cat.Billing, Billable)
	}
}

func TestParse_CustomerCasePreserved(t *testing.T) {
	cat, err := Parse("aCme CoRp - billable", false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cat.Customer != "aCme CoRp" {
		t.Errorf("Customer = %q, want case preserved", cat.Customer)
	}
}

func TestParse_ReservedNames(t *testing.T) {
	for _, raw := range []string{"Admin - non-billable", "Break - non-billable"} {
		cat, err := Parse(raw, false)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}
		if !cat.IsReserved() {
			t.Errorf("Parse(%q).IsReserved = false, want true", raw)
		}
		if cat.IsBillable() {
			t.Errorf("Parse(%q).IsBillable = true, want false", raw)
		}
	}
}

func TestParse_OnlineMarker(t *testing.T) {
	cat, err := Parse("Online", false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !cat.IsOnline() {
		t.Error("IsOnline = false, want true")
	}
	if cat.Billing != BillingNone {
		t.Errorf("Billing = %q, want empty", cat.Billing)
	}
}

func TestParse_EmptyPrivate(t *testing.T) {
	cat, err := Parse("", true)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !cat.IsUncategorized() {
		t.Error("IsUncategorized = false, want true")
	}
}

func TestParse_EmptyNonPrivate(t *testing.T) {
	_, err := Parse("", false)
	if err == nil {
		t.Fatal("Parse succeeded, want CATEGORY_FORMAT error")
	}
	if !errors.Is(err, errors.ErrCategoryFormat) {
		t.Errorf("error code = %v, want CATEGORY_FORMAT", err)
	}
}

func TestParse_MalformedInputs(t *testing.T) {
	cases := []string{
		"Acme Corp",               // no separator
		"Acme - billable - extra", // three segments
		"Acme - maybe-billable",   // unknown billing type
		" - billable",             // empty customer
		"Acme - ",                 // empty billing
		"Acme-billable",           // separator needs surrounding spaces
	}
	for _, raw := range cases {
		_, err := Parse(raw, false)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", raw)
			continue
		}
		if !errors.Is(err, errors.ErrCategoryFormat) {
			t.Errorf("Parse(%q) error code = %v, want CATEGORY_FORMAT", raw, err)
		}
	}
}

func TestRender_RoundTrip(t *testing.T) {
	cases := []string{
		"Acme Corp - billable",
		"Beta GmbH - non-billable",
		"Admin - non-billable",
		"Break - non-billable",
		"Online",
	}
	for _, raw := range cases {
		cat, err := Parse(raw, false)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}
		if got := Render(cat); got != raw {
			t.Errorf("Render(Parse(%q)) = %q, want round-trip", raw, got)
		}
	}
}

func TestRender_Uncategorized(t *testing.T) {
	if got := Render(Uncategorized); got != "" {
		t.Errorf("Render(Uncategorized) = %q, want empty", got)
	}
}
