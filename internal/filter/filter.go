// Package filter provides query criteria for stored events.
//
// A Filter combines optional criteria; an event must satisfy all of them:
//   - Date range: the event must lie entirely within DateFrom and DateTo (inclusive)
//   - Location: case-insensitive substring match
//   - Fee range: at least one fee tier priced within FeeMin and FeeMax (inclusive)
//
// The store translates a Filter into SQL; Matches applies the same rules in memory.
//
// Example usage:
//
//	from, to, _ := filter.ParseDateRange("2025-06-01..2025-08-31")
//	min, max, _ := filter.ParseFeeRange("10-50")
//	f := filter.Filter{DateFrom: from, DateTo: to, Location: "bath", FeeMin: min, FeeMax: max}
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pfrederiksen/opencall-events/internal/event"
)

// Filter represents event query criteria
type Filter struct {
	DateFrom *event.Date      `json:"date_from,omitempty"`
	DateTo   *event.Date      `json:"date_to,omitempty"`
	Location string           `json:"location,omitempty"`
	FeeMin   *decimal.Decimal `json:"fee_min,omitempty"`
	FeeMax   *decimal.Decimal `json:"fee_max,omitempty"`
}

// IsEmpty checks if the filter has any active criteria.
// Returns true if the filter would match all events.
func (f Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		strings.TrimSpace(f.Location) == "" &&
		!f.HasFeeRange()
}

// HasFeeRange reports whether either fee bound is set.
func (f Filter) HasFeeRange() bool {
	return f.FeeMin != nil || f.FeeMax != nil
}

// Validate rejects inverted ranges and negative fees.
func (f Filter) Validate() error {
	var problems []string
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		problems = append(problems, fmt.Sprintf("date_from %s is after date_to %s", f.DateFrom, f.DateTo))
	}
	if f.FeeMin != nil && f.FeeMin.IsNegative() {
		problems = append(problems, "fee_min must not be negative")
	}
	if f.FeeMax != nil && f.FeeMax.IsNegative() {
		problems = append(problems, "fee_max must not be negative")
	}
	if f.FeeMin != nil && f.FeeMax != nil && f.FeeMin.GreaterThan(*f.FeeMax) {
		problems = append(problems, fmt.Sprintf("fee_min %s is greater than fee_max %s", f.FeeMin, f.FeeMax))
	}
	if len(problems) > 0 {
		return &event.ValidationError{Op: "filter", Err: errors.New(strings.Join(problems, "; "))}
	}
	return nil
}

// Matches checks if an event satisfies every active criterion. Fee matching
// reads evt.FeeTiers, so they must be loaded.
func (f Filter) Matches(evt event.Event) bool {
	if f.DateFrom != nil && f.DateFrom.After(evt.DateStart) {
		return false
	}
	if f.DateTo != nil && evt.DateEnd.After(*f.DateTo) {
		return false
	}

	if loc := strings.TrimSpace(f.Location); loc != "" {
		if !strings.Contains(strings.ToLower(evt.Location), strings.ToLower(loc)) {
			return false
		}
	}

	if f.HasFeeRange() {
		matched := false
		for _, tier := range evt.FeeTiers {
			if f.feeInRange(tier.FeeAmount) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

func (f Filter) feeInRange(amount decimal.Decimal) bool {
	if f.FeeMin != nil && amount.LessThan(*f.FeeMin) {
		return false
	}
	if f.FeeMax != nil && amount.GreaterThan(*f.FeeMax) {
		return false
	}
	return true
}

// Apply returns the events matching the filter. An empty filter returns the input unchanged.
func (f Filter) Apply(events []event.Event) []event.Event {
	if f.IsEmpty() {
		return events
	}

	var filtered []event.Event
	for _, evt := range events {
		if f.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}

	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "From: 2025-06-01 | To: 2025-08-31 | Location: bath | Fees: 10.00-50.00"
func (f Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom))
	}

	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo))
	}

	if loc := strings.TrimSpace(f.Location); loc != "" {
		parts = append(parts, fmt.Sprintf("Location: %s", loc))
	}

	if f.HasFeeRange() {
		lo, hi := "0.00", "any"
		if f.FeeMin != nil {
			lo = f.FeeMin.StringFixed(2)
		}
		if f.FeeMax != nil {
			hi = f.FeeMax.StringFixed(2)
		}
		parts = append(parts, fmt.Sprintf("Fees: %s-%s", lo, hi))
	}

	return strings.Join(parts, " | ")
}
