// Package category parses and renders the billing category string attached
// to calendar appointments. The wire format is stable and user-facing:
//
//	"<customer> - <billable|non-billable>"
//
// with reserved literals "Admin - non-billable", "Break - non-billable" and
// the bare "Online" marker.
package category

import (
	"fmt"
	"strings"

	"daybook/internal/errors"
)

// Reserved customer names and markers.
const (
	CustomerAdmin = "Admin"
	CustomerBreak = "Break"
	MarkerOnline  = "Online"
)

// separator is the literal segment separator of the wire format.
const separator = " - "

// BillingType distinguishes billable from non-billable time.
type BillingType string

const (
	Billable    BillingType = "billable"
	NonBillable BillingType = "non-billable"

	// BillingNone is used for the Uncategorized sentinel and the bare
	// Online marker, which carries no billing type.
	BillingNone BillingType = ""
)

// Category is a parsed billing category.
// The zero value is the Uncategorized sentinel.
type Category struct {
	// Customer is the customer segment, case-preserved.
	// Empty for Uncategorized.
	Customer string `json:"customer,omitempty"`

	Billing BillingType `json:"billing,omitempty"`
}

// Uncategorized is the sentinel for appointments without a category.
var Uncategorized = Category{}

// IsUncategorized reports whether the category is the sentinel value.
func (c Category) IsUncategorized() bool {
	return c.Customer == ""
}

// IsOnline reports whether the category is the Online marker.
func (c Category) IsOnline() bool {
	return c.Customer == MarkerOnline
}

// IsReserved reports whether the customer is one of the reserved names.
func (c Category) IsReserved() bool {
	return c.Customer == CustomerAdmin || c.Customer == CustomerBreak
}

// IsBillable reports whether the category represents billable time.
func (c Category) IsBillable() bool {
	return c.Billing == Billable
}

// Parse parses a raw category string. It is a pure function.
//
// An empty raw string yields the Uncategorized sentinel for private
// appointments; for non-private appointments it is a format error.
// Parse errors are recoverable: callers flag the record rather than abort.
func Parse(raw string, isPrivate bool) (Category, error) {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		if isPrivate {
			return Uncategorized, nil
		}
		return Uncategorized, errors.NewCategoryFormat(raw, "empty category on non-private appointment")
	}

	// Bare Online marker: billing type is optional.
	if trimmed == MarkerOnline {
		return Category{Customer: MarkerOnline}, nil
	}

	segments := strings.Split(trimmed, separator)
	if len(segments) != 2 {
		return Uncategorized, errors.NewCategoryFormat(raw, "expected exactly two segments separated by \" - \"")
	}

	customer := strings.TrimSpace(segments[0])
	billingRaw := strings.TrimSpace(segments[1])
	if customer == "" || billingRaw == "" {
		return Uncategorized, errors.NewCategoryFormat(raw, "empty segment")
	}

	billing, err := parseBilling(billingRaw)
	if err != nil {
		return Uncategorized, errors.NewCategoryFormat(raw, err.Error())
	}

	return Category{Customer: customer, Billing: billing}, nil
}

// parseBilling matches billing tokens case-insensitively.
func parseBilling(s string) (BillingType, error) {
	switch strings.ToLower(s) {
	case string(Billable):
		return Billable, nil
	case string(NonBillable):
		return NonBillable, nil
	}
	return BillingNone, fmt.Errorf("billing type %q must be billable or non-billable", s)
}

// Render produces the wire-format string for a category.
// Render and Parse round-trip for all valid categories.
func Render(c Category) string {
	if c.IsUncategorized() {
		return ""
	}
	if c.Billing == BillingNone {
		return c.Customer
	}
	return c.Customer + separator + string(c.Billing)
}
