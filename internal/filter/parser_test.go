package filter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfrederiksen/opencall-events/internal/event"
)

func pinNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestParseDateRange(t *testing.T) {
	pinNow(t, time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		name     string
		input    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{name: "iso range", input: "2026-06-01..2026-08-31", wantFrom: "2026-06-01", wantTo: "2026-08-31"},
		{name: "iso open end", input: "2026-06-01..", wantFrom: "2026-06-01"},
		{name: "iso open start", input: "..2026-08-31", wantTo: "2026-08-31"},
		{name: "single day", input: "2026-07-04", wantFrom: "2026-07-04", wantTo: "2026-07-04"},
		{name: "same month short", input: "Jun 1-15", wantFrom: "2026-06-01", wantTo: "2026-06-15"},
		{name: "same month long with spaces", input: "June 1 - 15", wantFrom: "2026-06-01", wantTo: "2026-06-15"},
		{name: "past month rolls to next year", input: "Mar 1-15", wantFrom: "2027-03-01", wantTo: "2027-03-15"},
		{name: "cross month", input: "June 20 - July 5", wantFrom: "2026-06-20", wantTo: "2026-07-05"},
		{name: "cross year", input: "Nov 20 - Feb 10", wantFrom: "2026-11-20", wantTo: "2027-02-10"},
		{name: "whole month", input: "June", wantFrom: "2026-06-01", wantTo: "2026-06-30"},
		{name: "whole month next year", input: "feb", wantFrom: "2027-02-01", wantTo: "2027-02-28"},
		{name: "current month", input: "May", wantFrom: "2026-05-01", wantTo: "2026-05-31"},
		{name: "empty", input: "", wantErr: true},
		{name: "no bounds", input: "..", wantErr: true},
		{name: "bad iso", input: "2026-13-01..", wantErr: true},
		{name: "inverted iso", input: "2026-08-31..2026-06-01", wantErr: true},
		{name: "inverted days", input: "Jun 15-1", wantErr: true},
		{name: "invalid day", input: "Jun 0-5", wantErr: true},
		{name: "garbage", input: "next week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ParseDateRange(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDateRange(%q) expected error, got %v..%v", tt.input, from, to)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDateRange(%q) unexpected error: %v", tt.input, err)
			}
			if got := datePtrString(from); got != tt.wantFrom {
				t.Errorf("from = %q, want %q", got, tt.wantFrom)
			}
			if got := datePtrString(to); got != tt.wantTo {
				t.Errorf("to = %q, want %q", got, tt.wantTo)
			}
		})
	}
}

func datePtrString(d *event.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func decString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		input string
		want  time.Month
	}{
		{"jan", time.January},
		{"January", time.January},
		{"SEPT", time.September},
		{" dec ", time.December},
		{"smarch", 0},
	}

	for _, tt := range tests {
		if got := parseMonth(tt.input); got != tt.want {
			t.Errorf("parseMonth(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestGetYearForMonth(t *testing.T) {
	pinNow(t, time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC))

	if got := getYearForMonth(time.April); got != 2027 {
		t.Errorf("getYearForMonth(April) = %d, want 2027", got)
	}
	if got := getYearForMonth(time.May); got != 2026 {
		t.Errorf("getYearForMonth(May) = %d, want 2026", got)
	}
	if got := getYearForMonth(time.December); got != 2026 {
		t.Errorf("getYearForMonth(December) = %d, want 2026", got)
	}
}

func TestParseFeeRange(t *testing.T) {
	tests := []struct {
		input   string
		wantMin string
		wantMax string
		wantErr bool
	}{
		{input: "10-50", wantMin: "10", wantMax: "50"},
		{input: "10.50..25", wantMin: "10.5", wantMax: "25"},
		{input: "£10 - £50", wantMin: "10", wantMax: "50"},
		{input: "10+", wantMin: "10"},
		{input: "10..", wantMin: "10"},
		{input: "..50", wantMax: "50"},
		{input: "50", wantMax: "50"},
		{input: "", wantErr: true},
		{input: "-", wantErr: true},
		{input: "50-10", wantErr: true},
		{input: "ten-20", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			min, max, err := ParseFeeRange(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFeeRange(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFeeRange(%q) unexpected error: %v", tt.input, err)
			}
			if got := decString(min); got != tt.wantMin {
				t.Errorf("min = %q, want %q", got, tt.wantMin)
			}
			if got := decString(max); got != tt.wantMax {
				t.Errorf("max = %q, want %q", got, tt.wantMax)
			}
		})
	}
}
