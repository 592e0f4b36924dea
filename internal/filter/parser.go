package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfrederiksen/opencall-events/internal/event"
)

// now is replaced in tests to pin year inference.
var now = time.Now

const monthNames = `(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)`

var (
	sameMonthRange  = regexp.MustCompile(`(?i)^` + monthNames + `\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	crossMonthRange = regexp.MustCompile(`(?i)^` + monthNames + `\s+(\d{1,2})\s*-\s*` + monthNames + `\s+(\d{1,2})$`)
	wholeMonth      = regexp.MustCompile(`(?i)^` + monthNames + `$`)
)

// ParseDateRange parses a date range string into inclusive start and end dates.
//
// Supported formats:
//   - "2025-06-01..2025-08-31" - ISO dates; either side may be omitted ("2025-06-01..", "..2025-08-31")
//   - "2025-06-01" - a single day
//   - "Mar 1-15" or "March 1-15" - Same month, different days
//   - "March 1 - April 15" - Different months
//   - "March" - Entire month
//
// For month-name formats the year is inferred: a month already past this year
// means next year, and a cross-month range whose end month precedes its start
// month ends in the following year.
func ParseDateRange(input string) (*event.Date, *event.Date, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}

	if strings.Contains(input, "..") {
		return parseISORange(input)
	}

	if d, err := event.ParseISODate(input); err == nil {
		return &d, &d, nil
	}

	// Format: "Mar 1-15" or "March 1-15"
	if matches := sameMonthRange.FindStringSubmatch(input); matches != nil {
		month := parseMonth(matches[1])
		day1, err := parseDay(matches[2])
		if err != nil {
			return nil, nil, err
		}
		day2, err := parseDay(matches[3])
		if err != nil {
			return nil, nil, err
		}

		year := getYearForMonth(month)
		return ordered(event.NewDate(year, month, day1), event.NewDate(year, month, day2))
	}

	// Format: "Mar 1 - Apr 15"
	if matches := crossMonthRange.FindStringSubmatch(input); matches != nil {
		month1 := parseMonth(matches[1])
		day1, err := parseDay(matches[2])
		if err != nil {
			return nil, nil, err
		}
		month2 := parseMonth(matches[3])
		day2, err := parseDay(matches[4])
		if err != nil {
			return nil, nil, err
		}

		year1 := getYearForMonth(month1)
		year2 := year1
		// If month2 < month1, assume month2 is in the next year
		if month2 < month1 {
			year2++
		}
		return ordered(event.NewDate(year1, month1, day1), event.NewDate(year2, month2, day2))
	}

	// Format: "March" (entire month)
	if matches := wholeMonth.FindStringSubmatch(input); matches != nil {
		month := parseMonth(matches[1])
		year := getYearForMonth(month)
		from := event.NewDate(year, month, 1)
		// Last day of month
		to := event.NewDate(year, month+1, 0)
		return &from, &to, nil
	}

	return nil, nil, fmt.Errorf("invalid date range format. Use '2025-06-01..2025-08-31', 'Mar 1-15', 'March 1 - April 15', or 'March'")
}

func parseISORange(input string) (*event.Date, *event.Date, error) {
	parts := strings.SplitN(input, "..", 2)
	var from, to *event.Date

	if s := strings.TrimSpace(parts[0]); s != "" {
		d, err := event.ParseISODate(s)
		if err != nil {
			return nil, nil, err
		}
		from = &d
	}
	if s := strings.TrimSpace(parts[1]); s != "" {
		d, err := event.ParseISODate(s)
		if err != nil {
			return nil, nil, err
		}
		to = &d
	}

	if from == nil && to == nil {
		return nil, nil, fmt.Errorf("date range %q has no bounds", input)
	}
	if from != nil && to != nil {
		return ordered(*from, *to)
	}
	return from, to, nil
}

func ordered(from, to event.Date) (*event.Date, *event.Date, error) {
	if from.After(to) {
		return nil, nil, fmt.Errorf("start date must be before end date")
	}
	return &from, &to, nil
}

func parseDay(s string) (int, error) {
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("invalid day: %s", s)
	}
	return day, nil
}

// parseMonth converts a month name to time.Month
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))

	months := map[string]time.Month{
		"jan": time.January, "january": time.January,
		"feb": time.February, "february": time.February,
		"mar": time.March, "march": time.March,
		"apr": time.April, "april": time.April,
		"may": time.May,
		"jun": time.June, "june": time.June,
		"jul": time.July, "july": time.July,
		"aug": time.August, "august": time.August,
		"sep": time.September, "sept": time.September, "september": time.September,
		"oct": time.October, "october": time.October,
		"nov": time.November, "november": time.November,
		"dec": time.December, "december": time.December,
	}

	return months[name]
}

// getYearForMonth returns the appropriate year for a given month
// If the month has already passed this year, returns next year
func getYearForMonth(month time.Month) int {
	current := now()
	year := current.Year()

	if month < current.Month() {
		year++
	}

	return year
}

// ParseFeeRange parses a fee range into inclusive bounds.
//
// Supported formats:
//   - "10-50" or "10..50" - both bounds
//   - "10+" or "10.." - minimum only
//   - "..50" - maximum only
//   - "50" - up to 50
//
// An optional currency symbol before each amount is ignored.
func ParseFeeRange(input string) (*decimal.Decimal, *decimal.Decimal, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("fee range cannot be empty")
	}

	var lo, hi string
	switch {
	case strings.HasSuffix(input, "+"):
		lo = strings.TrimSuffix(input, "+")
	case strings.Contains(input, ".."):
		parts := strings.SplitN(input, "..", 2)
		lo, hi = parts[0], parts[1]
	case strings.Contains(input, "-"):
		parts := strings.SplitN(input, "-", 2)
		lo, hi = parts[0], parts[1]
	default:
		hi = input
	}

	min, err := parseAmount(lo)
	if err != nil {
		return nil, nil, err
	}
	max, err := parseAmount(hi)
	if err != nil {
		return nil, nil, err
	}
	if min == nil && max == nil {
		return nil, nil, fmt.Errorf("fee range %q has no bounds", input)
	}
	if min != nil && max != nil && min.GreaterThan(*max) {
		return nil, nil, fmt.Errorf("minimum fee %s is greater than maximum %s", min, max)
	}
	return min, max, nil
}

func parseAmount(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "£$€"))
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid fee amount %q", s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("fee amount must not be negative: %s", s)
	}
	return &d, nil
}
