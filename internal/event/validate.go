package event

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/shopspring/decimal"
)

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// SourceLinkInput carries a discovered URL and whatever raw text was observed on the page.
type SourceLinkInput struct {
	URL            string `json:"url"`
	RawTitle       string `json:"raw_title,omitempty"`
	RawDate        string `json:"raw_date,omitempty"`
	RawLocation    string `json:"raw_location,omitempty"`
	RawDescription string `json:"raw_description,omitempty"`
}

func (in SourceLinkInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.URL, validation.Required, is.RequestURL),
	)
}

// Model validates the input and returns the row to insert.
// The URL is stored exactly as given.
func (in SourceLinkInput) Model() (SourceLink, error) {
	if err := in.Validate(); err != nil {
		return SourceLink{}, invalid("source link", err)
	}
	return SourceLink{
		URL:            in.URL,
		RawTitle:       optional(in.RawTitle),
		RawDate:        optional(in.RawDate),
		RawLocation:    optional(in.RawLocation),
		RawDescription: optional(in.RawDescription),
	}, nil
}

// EventInput is an event as supplied by a caller, with dates as YYYY-MM-DD strings.
type EventInput struct {
	Title       string `json:"title"`
	DateStart   string `json:"date_start"`
	DateEnd     string `json:"date_end"`
	Venue       string `json:"venue"`
	Location    string `json:"location"`
	County      string `json:"county,omitempty"`
	Description string `json:"description,omitempty"`
	URLID       uint   `json:"url_id"`
}

// trimmed returns a copy with surrounding whitespace removed from the text
// fields, so a blank value fails Required.
func (in EventInput) trimmed() EventInput {
	in.Title = strings.TrimSpace(in.Title)
	in.DateStart = strings.TrimSpace(in.DateStart)
	in.DateEnd = strings.TrimSpace(in.DateEnd)
	in.Venue = strings.TrimSpace(in.Venue)
	in.Location = strings.TrimSpace(in.Location)
	in.County = strings.TrimSpace(in.County)
	return in
}

func (in EventInput) Validate() error {
	in = in.trimmed()
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.DateStart, validation.Required, validation.Date(DateLayout)),
		validation.Field(&in.DateEnd, validation.Required, validation.Date(DateLayout)),
		validation.Field(&in.Venue, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Location, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.County, validation.Length(0, 100)),
		validation.Field(&in.URLID, validation.Required),
	)
	if err != nil {
		return err
	}
	// Both dates are well formed at this point.
	start, _ := ParseISODate(in.DateStart)
	end, _ := ParseISODate(in.DateEnd)
	if start.After(end) {
		return validation.Errors{
			"date_end": fmt.Errorf("must not be before date_start (%s > %s)", start, end),
		}
	}
	return nil
}

// Model validates the input and returns the row to insert.
func (in EventInput) Model() (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, invalid("event", err)
	}
	in = in.trimmed()
	start, _ := ParseISODate(in.DateStart)
	end, _ := ParseISODate(in.DateEnd)
	return Event{
		Title:       in.Title,
		DateStart:   start,
		DateEnd:     end,
		Venue:       in.Venue,
		Location:    in.Location,
		County:      optional(in.County),
		Description: optional(in.Description),
		URLID:       in.URLID,
	}, nil
}

// FeeTierInput is a fee tier as supplied by a caller, with money as decimal strings.
// An empty FeeType is derived from NumberEntries: flat when nil, tier otherwise.
type FeeTierInput struct {
	EventID           uint    `json:"event_id"`
	FeeType           FeeType `json:"fee_type,omitempty"`
	NumberEntries     *int    `json:"number_entries,omitempty"`
	FeeAmount         string  `json:"fee_amount"`
	FlatRate          string  `json:"flat_rate,omitempty"`
	CommissionPercent string  `json:"commission_percent,omitempty"`
}

func (in FeeTierInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.EventID, validation.Required),
		validation.Field(&in.FeeType, validation.In(FeeTypeFlat, FeeTypeTier)),
		validation.Field(&in.NumberEntries, validation.By(positiveInt)),
		validation.Field(&in.FeeAmount, validation.Required, decimalBetween(&zero, nil)),
		validation.Field(&in.FlatRate, decimalBetween(&zero, nil)),
		validation.Field(&in.CommissionPercent, decimalBetween(&zero, &hundred)),
	)
}

// Model validates the input and returns the row to insert.
func (in FeeTierInput) Model() (FeeTier, error) {
	if err := in.Validate(); err != nil {
		return FeeTier{}, invalid("fee tier", err)
	}
	feeType := in.FeeType
	if feeType == "" {
		feeType = FeeTypeTier
		if in.NumberEntries == nil {
			feeType = FeeTypeFlat
		}
	}
	return FeeTier{
		EventID:           in.EventID,
		FeeType:           feeType,
		NumberEntries:     in.NumberEntries,
		FeeAmount:         decimal.RequireFromString(strings.TrimSpace(in.FeeAmount)),
		FlatRate:          nullDecimal(in.FlatRate),
		CommissionPercent: nullDecimal(in.CommissionPercent),
	}, nil
}

// PrizeInput is a prize as supplied by a caller. A nil rank means unranked.
type PrizeInput struct {
	EventID          uint   `json:"event_id"`
	PrizeRank        *int   `json:"prize_rank,omitempty"`
	PrizeAmount      string `json:"prize_amount,omitempty"`
	PrizeType        string `json:"prize_type,omitempty"`
	PrizeDescription string `json:"prize_description,omitempty"`
}

func (in PrizeInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.EventID, validation.Required),
		validation.Field(&in.PrizeRank, validation.By(positiveInt)),
		validation.Field(&in.PrizeAmount, decimalBetween(&zero, nil)),
		validation.Field(&in.PrizeType, validation.Length(0, 50)),
	)
}

// Model validates the input and returns the row to insert.
func (in PrizeInput) Model() (Prize, error) {
	if err := in.Validate(); err != nil {
		return Prize{}, invalid("prize", err)
	}
	return Prize{
		EventID:          in.EventID,
		PrizeRank:        in.PrizeRank,
		PrizeAmount:      nullDecimal(in.PrizeAmount),
		PrizeType:        optional(strings.TrimSpace(in.PrizeType)),
		PrizeDescription: optional(in.PrizeDescription),
	}, nil
}

// ValidateBatch checks every record before any is written and reports the first
// failing record by index.
func ValidateBatch(inputs []EventInput) error {
	if len(inputs) == 0 {
		return invalid("bulk insert", errors.New("no events supplied"))
	}
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return invalid("bulk insert", fmt.Errorf("record %d: %w", i, err))
		}
	}
	return nil
}

// positiveInt accepts a nil *int or one that is at least 1.
func positiveInt(value interface{}) error {
	n, ok := value.(*int)
	if !ok || n == nil {
		return nil
	}
	if *n < 1 {
		return errors.New("must be at least 1")
	}
	return nil
}

// decimalBetween accepts a blank string or a decimal within the given inclusive bounds.
func decimalBetween(min, max *decimal.Decimal) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return errors.New("must be a decimal number")
		}
		if min != nil && d.LessThan(*min) {
			return fmt.Errorf("must be no less than %s", min.String())
		}
		if max != nil && d.GreaterThan(*max) {
			return fmt.Errorf("must be no greater than %s", max.String())
		}
		return nil
	})
}

func nullDecimal(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
