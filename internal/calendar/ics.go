// Package calendar exports stored events as iCalendar data.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/opencall-events/internal/event"
)

// now is replaced in tests to pin DTSTAMP.
var now = time.Now

const icsDateLayout = "20060102"

// maxLineOctets is the RFC 5545 content line limit, excluding CRLF.
const maxLineOctets = 75

type options struct {
	sourceURLs map[uint]string
	name       string
}

// Option configures GenerateICS.
type Option func(*options)

// WithSourceURLs supplies the page URL of each source link, keyed by link id.
// Events whose link is present get a URL property.
func WithSourceURLs(urls map[uint]string) Option {
	return func(o *options) { o.sourceURLs = urls }
}

// WithCalendarName sets the X-WR-CALNAME shown by calendar clients.
func WithCalendarName(name string) Option {
	return func(o *options) { o.name = name }
}

// GenerateICS renders events as one VCALENDAR of all-day VEVENTs.
// DTEND is exclusive, so a one-day event ends the day after it starts.
func GenerateICS(events []event.Event, opts ...Option) string {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var ics strings.Builder
	writeLine(&ics, "BEGIN:VCALENDAR")
	writeLine(&ics, "VERSION:2.0")
	writeLine(&ics, "PRODID:-//OpenCall Events//opencall//EN")
	writeLine(&ics, "CALSCALE:GREGORIAN")
	writeLine(&ics, "METHOD:PUBLISH")
	if o.name != "" {
		writeLine(&ics, "X-WR-CALNAME:"+escapeICS(o.name))
	}

	stamp := formatICSTime(now())
	for _, evt := range events {
		writeEvent(&ics, evt, stamp, o)
	}

	writeLine(&ics, "END:VCALENDAR")
	return ics.String()
}

func writeEvent(ics *strings.Builder, evt event.Event, stamp string, o options) {
	writeLine(ics, "BEGIN:VEVENT")
	writeLine(ics, fmt.Sprintf("UID:event-%d@opencall-events", evt.ID))
	writeLine(ics, "DTSTAMP:"+stamp)

	end := evt.DateEnd
	if end.IsZero() || evt.DateStart.After(end) {
		end = evt.DateStart
	}
	writeLine(ics, "DTSTART;VALUE=DATE:"+evt.DateStart.Format(icsDateLayout))
	writeLine(ics, "DTEND;VALUE=DATE:"+end.AddDate(0, 0, 1).Format(icsDateLayout))

	writeLine(ics, "SUMMARY:"+escapeICS(evt.Title))

	var description []string
	if evt.Description != nil && *evt.Description != "" {
		description = append(description, *evt.Description)
	}
	for _, tier := range evt.FeeTiers {
		description = append(description, feeLine(tier))
	}
	if len(description) > 0 {
		writeLine(ics, "DESCRIPTION:"+escapeICS(strings.Join(description, "\n")))
	}

	location := evt.Venue
	if evt.Location != "" && evt.Location != evt.Venue {
		location = fmt.Sprintf("%s, %s", evt.Venue, evt.Location)
	}
	writeLine(ics, "LOCATION:"+escapeICS(location))

	if url, ok := o.sourceURLs[evt.URLID]; ok && url != "" {
		writeLine(ics, "URL:"+url)
	}

	writeLine(ics, "STATUS:CONFIRMED")
	writeLine(ics, "TRANSP:TRANSPARENT")
	writeLine(ics, "END:VEVENT")
}

func feeLine(tier event.FeeTier) string {
	line := "Entry fee " + tier.FeeAmount.StringFixed(2)
	if tier.NumberEntries != nil {
		line = fmt.Sprintf("%s for %d entries", line, *tier.NumberEntries)
	}
	if tier.CommissionPercent.Valid {
		line = fmt.Sprintf("%s (commission %s%%)", line, tier.CommissionPercent.Decimal.String())
	}
	return line
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// writeLine writes one content line, folding it at 75 octets without
// splitting a UTF-8 sequence. Continuation lines start with a space.
func writeLine(ics *strings.Builder, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		// The leading space counts towards the next line's length.
		limit = maxLineOctets - 1
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
