package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDateText(t *testing.T) {
	tests := []struct {
		name      string
		dateText  string
		wantYear  int
		wantMonth time.Month
		wantDay   int
		wantZero  bool
	}{
		{name: "ISO", dateText: "2025-06-01", wantYear: 2025, wantMonth: time.June, wantDay: 1},
		{name: "ISO with slashes", dateText: "2025/06/01", wantYear: 2025, wantMonth: time.June, wantDay: 1},
		{name: "day first slash", dateText: "05/06/2025", wantYear: 2025, wantMonth: time.June, wantDay: 5},
		{name: "day first no padding", dateText: "5/6/2025", wantYear: 2025, wantMonth: time.June, wantDay: 5},
		{name: "day first dash short year", dateText: "05-06-25", wantYear: 2025, wantMonth: time.June, wantDay: 5},
		{name: "day first dots", dateText: "31.12.2025", wantYear: 2025, wantMonth: time.December, wantDay: 31},
		{name: "long month", dateText: "1 June 2025", wantYear: 2025, wantMonth: time.June, wantDay: 1},
		{name: "ordinal", dateText: "21st March 2026", wantYear: 2026, wantMonth: time.March, wantDay: 21},
		{name: "short month", dateText: "3 Sep 2025", wantYear: 2025, wantMonth: time.September, wantDay: 3},
		{name: "month first with comma", dateText: "June 1, 2025", wantYear: 2025, wantMonth: time.June, wantDay: 1},
		{name: "month first short", dateText: "Mar 13 2026", wantYear: 2026, wantMonth: time.March, wantDay: 13},
		{name: "month and year", dateText: "October 2025", wantYear: 2025, wantMonth: time.October, wantDay: 1},
		{name: "extra whitespace", dateText: "  1   June  2025 ", wantYear: 2025, wantMonth: time.June, wantDay: 1},
		{name: "empty", dateText: "", wantZero: true},
		{name: "garbage", dateText: "sometime soon", wantZero: true},
		{name: "impossible day", dateText: "31/02/2025", wantZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDateText(tt.dateText)
			if tt.wantZero {
				if !got.IsZero() {
					t.Errorf("ParseDateText(%q) = %v, want zero time", tt.dateText, got)
				}
				return
			}
			if got.Year() != tt.wantYear || got.Month() != tt.wantMonth || got.Day() != tt.wantDay {
				t.Errorf("ParseDateText(%q) = %v, want %d-%02d-%02d",
					tt.dateText, got.Format(DateLayout), tt.wantYear, tt.wantMonth, tt.wantDay)
			}
		})
	}
}

func TestNormalizeDateText(t *testing.T) {
	if got := NormalizeDateText("1 June 2025"); got != "2025-06-01" {
		t.Errorf("NormalizeDateText() = %q, want 2025-06-01", got)
	}
	if got := NormalizeDateText("not a date"); got != "" {
		t.Errorf("NormalizeDateText() = %q, want empty", got)
	}
}

func TestParseISODate(t *testing.T) {
	d, err := ParseISODate("2025-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2025-06-01" {
		t.Errorf("String() = %q", d.String())
	}

	for _, bad := range []string{"", "01/06/2025", "2025-13-01", "2025-6-1"} {
		if _, err := ParseISODate(bad); err == nil {
			t.Errorf("ParseISODate(%q) expected error", bad)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, time.June, 1)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2025-06-01"` {
		t.Errorf("marshal = %s", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("unmarshal = %v, want %v", back, d)
	}

	if err := json.Unmarshal([]byte(`"June 1"`), &back); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestDateScan(t *testing.T) {
	want := NewDate(2025, time.June, 1)
	inputs := []interface{}{
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.June, 1, 13, 30, 0, 0, time.UTC),
		"2025-06-01",
		"2025-06-01 00:00:00+00:00",
		[]byte("2025-06-01T00:00:00Z"),
	}
	for _, in := range inputs {
		var d Date
		if err := d.Scan(in); err != nil {
			t.Errorf("Scan(%v) error: %v", in, err)
			continue
		}
		if !d.Equal(want.Time) {
			t.Errorf("Scan(%v) = %v, want %v", in, d, want)
		}
	}

	var d Date
	if err := d.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Errorf("Scan(nil) = %v, %v", d, err)
	}
}

func TestDateAfter(t *testing.T) {
	a := NewDate(2025, time.June, 1)
	b := NewDate(2025, time.May, 1)
	if !a.After(b) || b.After(a) || a.After(a) {
		t.Error("After ordering is wrong")
	}
}
