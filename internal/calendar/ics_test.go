package calendar

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/pfrederiksen/opencall-events/internal/event"
)

func pinNow(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func strPtr(s string) *string { return &s }

func testEvent() event.Event {
	entries := 3
	return event.Event{
		ID:          7,
		Title:       "Spring Open",
		DateStart:   event.NewDate(2026, 3, 15),
		DateEnd:     event.NewDate(2026, 3, 17),
		Venue:       "Guildhall",
		Location:    "Bath",
		Description: strPtr("Open call"),
		URLID:       2,
		FeeTiers: []event.FeeTier{
			{FeeType: event.FeeTypeTier, NumberEntries: &entries, FeeAmount: decimal.RequireFromString("25"),
				CommissionPercent: decimal.NewNullDecimal(decimal.RequireFromString("30"))},
		},
	}
}

func TestGenerateICS(t *testing.T) {
	pinNow(t)

	ics := GenerateICS([]event.Event{testEvent()}, WithSourceURLs(map[uint]string{2: "https://a.test/spring"}))

	requiredFields := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//OpenCall Events//opencall//EN",
		"BEGIN:VEVENT",
		"UID:event-7@opencall-events",
		"DTSTAMP:20260301T083000Z",
		"DTSTART;VALUE=DATE:20260315",
		"DTEND;VALUE=DATE:20260318",
		"SUMMARY:Spring Open",
		"DESCRIPTION:Open call\\nEntry fee 25.00 for 3 entries (commission 30%)",
		"LOCATION:Guildhall\\, Bath", // Comma is escaped
		"URL:https://a.test/spring",
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"END:VCALENDAR",
	}

	for _, field := range requiredFields {
		if !strings.Contains(ics, field) {
			t.Errorf("ICS missing required field: %s", field)
		}
	}

	if !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Error("ICS should end with END:VCALENDAR and CRLF")
	}
	if strings.Contains(strings.ReplaceAll(ics, "\r\n", ""), "\n") {
		t.Error("ICS should only use \\r\\n line endings")
	}
}

func TestGenerateICS_SingleDay(t *testing.T) {
	evt := testEvent()
	evt.DateEnd = evt.DateStart

	ics := GenerateICS([]event.Event{evt})

	if !strings.Contains(ics, "DTEND;VALUE=DATE:20260316") {
		t.Error("one-day event should end the following day")
	}
	if strings.Contains(ics, "URL:") {
		t.Error("URL should be omitted when the source link is unknown")
	}
}

func TestGenerateICS_Multiple(t *testing.T) {
	first := testEvent()
	second := testEvent()
	second.ID = 8
	second.Description = nil
	second.FeeTiers = nil

	ics := GenerateICS([]event.Event{first, second}, WithCalendarName("Open calls; 2026"))

	if got := strings.Count(ics, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("Expected 2 BEGIN:VEVENT, got %d", got)
	}
	if got := strings.Count(ics, "END:VEVENT"); got != 2 {
		t.Errorf("Expected 2 END:VEVENT, got %d", got)
	}
	if got := strings.Count(ics, "DESCRIPTION:"); got != 1 {
		t.Errorf("Expected 1 DESCRIPTION, got %d", got)
	}
	if !strings.Contains(ics, "X-WR-CALNAME:Open calls\\; 2026") {
		t.Error("Missing calendar name")
	}
}

func TestGenerateICS_Empty(t *testing.T) {
	ics := GenerateICS(nil)

	if !strings.Contains(ics, "BEGIN:VCALENDAR") || !strings.Contains(ics, "END:VCALENDAR") {
		t.Error("empty export should still be a calendar")
	}
	if strings.Contains(ics, "BEGIN:VEVENT") {
		t.Error("empty export should contain no events")
	}
	if strings.Contains(ics, "X-WR-CALNAME:") {
		t.Error("Should not include X-WR-CALNAME when name is empty")
	}
}

func TestWriteLineFolds(t *testing.T) {
	var b strings.Builder
	long := "SUMMARY:" + strings.Repeat("é", 60)
	writeLine(&b, long)

	lines := strings.Split(strings.TrimSuffix(b.String(), "\r\n"), "\r\n")
	if len(lines) < 2 {
		t.Fatalf("expected folded output, got %d line(s)", len(lines))
	}
	for i, line := range lines {
		if len(line) > maxLineOctets {
			t.Errorf("line %d is %d octets", i, len(line))
		}
		if !utf8.ValidString(line) {
			t.Errorf("line %d splits a UTF-8 sequence", i)
		}
		if i > 0 && !strings.HasPrefix(line, " ") {
			t.Errorf("continuation line %d should start with a space", i)
		}
	}

	var unfolded strings.Builder
	for i, line := range lines {
		if i > 0 {
			line = line[1:]
		}
		unfolded.WriteString(line)
	}
	if unfolded.String() != long {
		t.Error("unfolding should restore the original line")
	}
}

func TestFormatICSTime(t *testing.T) {
	testTime := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	formatted := formatICSTime(testTime)

	expected := "20260315T143000Z"
	if formatted != expected {
		t.Errorf("formatICSTime() = %q, want %q", formatted, expected)
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Simple text", "Simple text"},
		{"Text with, comma", "Text with\\, comma"},
		{"Text with; semicolon", "Text with\\; semicolon"},
		{"Text with\\backslash", "Text with\\\\backslash"},
		{"Text with\nnewline", "Text with\\nnewline"},
		{"Windows\r\nbreak", "Windows\\nbreak"},
		{"All, special; chars\\\n", "All\\, special\\; chars\\\\\\n"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := escapeICS(tt.input)
			if got != tt.expected {
				t.Errorf("escapeICS(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
