package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pfrederiksen/opencall-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate     SortOrder = "date"
	SortByTitle    SortOrder = "title"
	SortByLocation SortOrder = "location"
	SortByFee      SortOrder = "fee"
)

func parseSortOrder(s string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch order {
	case SortByDate, SortByTitle, SortByLocation, SortByFee:
		return order, nil
	}
	return "", &event.ValidationError{Op: "flags", Err: fmt.Errorf("invalid sort order: %s (must be date, title, location or fee)", s)}
}

// sortEvents sorts a slice of events based on the specified sort order
func sortEvents(events []event.Event, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(events, func(i, j int) bool {
			return compareByDate(events[i], events[j])
		})
	case SortByTitle:
		sort.SliceStable(events, func(i, j int) bool {
			ti, tj := strings.ToLower(events[i].Title), strings.ToLower(events[j].Title)
			if ti != tj {
				return ti < tj
			}
			// If titles are equal, sort by date
			return compareByDate(events[i], events[j])
		})
	case SortByLocation:
		sort.SliceStable(events, func(i, j int) bool {
			li, lj := strings.ToLower(events[i].Location), strings.ToLower(events[j].Location)
			if li != lj {
				return li < lj
			}
			return compareByDate(events[i], events[j])
		})
	case SortByFee:
		sort.SliceStable(events, func(i, j int) bool {
			fi, okI := lowestFee(events[i])
			fj, okJ := lowestFee(events[j])
			// Events without fees go last
			if okI != okJ {
				return okI
			}
			if okI && !fi.Equal(fj) {
				return fi.LessThan(fj)
			}
			return compareByDate(events[i], events[j])
		})
	}
}

// compareByDate compares two events by their date
// Returns true if event i should come before event j
func compareByDate(i, j event.Event) bool {
	if !i.DateStart.Equal(j.DateStart.Time) {
		return i.DateStart.Before(j.DateStart.Time)
	}
	if !i.DateEnd.Equal(j.DateEnd.Time) {
		return i.DateEnd.Before(j.DateEnd.Time)
	}
	return i.ID < j.ID
}

func lowestFee(evt event.Event) (decimal.Decimal, bool) {
	if len(evt.FeeTiers) == 0 {
		return decimal.Decimal{}, false
	}
	low := evt.FeeTiers[0].FeeAmount
	for _, tier := range evt.FeeTiers[1:] {
		if tier.FeeAmount.LessThan(low) {
			low = tier.FeeAmount
		}
	}
	return low, true
}
