package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the wire format for dates crossing the package boundary.
const DateLayout = "2006-01-02"

// Date is a calendar day stored as midnight UTC.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseISODate parses a strict YYYY-MM-DD string.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero value.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseISODate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GormDataType maps Date to a DATE column on every dialect.
func (Date) GormDataType() string { return "date" }

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
}

// storedLayouts covers what sqlite hands back for DATE columns and for aggregates over them.
var storedLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05Z07:00",
	DateLayout,
}

// Scan implements sql.Scanner.
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
}

func (d *Date) scanString(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range storedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*d = NewDate(t.Year(), t.Month(), t.Day())
			return nil
		}
	}
	return fmt.Errorf("cannot parse stored date %q", s)
}

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	spaces        = regexp.MustCompile(`\s+`)
)

// ParseDateText attempts to parse a date as it appears on a web page.
// Returns time.Time{} (zero value) if parsing fails.
// Numeric forms are read day-first ("05/06/2025" is 5 June), except when the
// first field has four digits ("2025/06/05").
// Supports: "5/6/2025", "05-06-25", "5.6.2025", "2025/06/05", "2025-06-05",
// "5 June 2025", "5th June 2025", "June 5, 2025", "June 2025", "Jun 5 2025".
func ParseDateText(dateText string) time.Time {
	text := strings.TrimSpace(dateText)
	if text == "" {
		return time.Time{}
	}
	text = ordinalSuffix.ReplaceAllString(text, "$1")
	text = spaces.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, ",", "")

	// Normalize numeric separators so one set of layouts covers "/", "-" and "."
	if strings.IndexFunc(text, isLetter) < 0 {
		text = strings.NewReplacer("-", "/", ".", "/").Replace(text)
	}

	layouts := []string{
		"2006/1/2",
		"2/1/2006",
		"2/1/06",
		"2 January 2006",
		"2 Jan 2006",
		"January 2 2006",
		"Jan 2 2006",
		"January 2006",
		"Jan 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}

	// Could not parse, return zero time
	return time.Time{}
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// NormalizeDateText returns the YYYY-MM-DD form of a page date, or "" when it cannot be parsed.
func NormalizeDateText(dateText string) string {
	t := ParseDateText(dateText)
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
