package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeType distinguishes a single flat charge from one tier of a per-quantity schedule.
type FeeType string

const (
	FeeTypeFlat FeeType = "flat"
	FeeTypeTier FeeType = "tier"
)

// SourceLink is a discovered page. URL is unique and compared byte for byte.
type SourceLink struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	URL            string    `gorm:"type:text;not null;unique" json:"url"`
	RawTitle       *string   `gorm:"type:text" json:"raw_title,omitempty"`
	RawDate        *string   `gorm:"type:text" json:"raw_date,omitempty"`
	RawLocation    *string   `gorm:"type:text" json:"raw_location,omitempty"`
	RawDescription *string   `gorm:"type:text" json:"raw_description,omitempty"`
	FirstSeen      time.Time `gorm:"autoCreateTime" json:"first_seen"`
	UpdatedAt      time.Time `json:"updated_at"`
	Events         []Event   `gorm:"foreignKey:URLID" json:"-"`
}

func (SourceLink) TableName() string { return "source_links" }

// Event is a structured occurrence derived from one SourceLink.
type Event struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	DateStart   Date      `gorm:"not null" json:"date_start"`
	DateEnd     Date      `gorm:"not null" json:"date_end"`
	Venue       string    `gorm:"size:255;not null" json:"venue"`
	Location    string    `gorm:"size:255;not null" json:"location"`
	County      *string   `gorm:"size:100" json:"county,omitempty"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	URLID       uint      `gorm:"column:url_id;not null" json:"url_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	FeeTiers []FeeTier `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"fee_tiers,omitempty"`
	Prizes   []Prize   `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"prizes,omitempty"`
}

func (Event) TableName() string { return "events" }

// FeeTier is a priced entry option for an Event. At most one row exists per
// (EventID, NumberEntries) pair.
type FeeTier struct {
	ID                uint                `gorm:"primaryKey" json:"id"`
	EventID           uint                `gorm:"not null;uniqueIndex:u_event_entries,priority:1" json:"event_id"`
	FeeType           FeeType             `gorm:"size:10;not null;default:tier" json:"fee_type"`
	NumberEntries     *int                `gorm:"uniqueIndex:u_event_entries,priority:2" json:"number_entries,omitempty"`
	FeeAmount         decimal.Decimal     `gorm:"type:numeric(10,2);not null" json:"fee_amount"`
	FlatRate          decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"flat_rate"`
	CommissionPercent decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"commission_percent"`
}

func (FeeTier) TableName() string { return "fee_tiers" }

// Prize is an award belonging to one Event.
type Prize struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	EventID          uint                `gorm:"not null" json:"event_id"`
	PrizeRank        *int                `json:"prize_rank,omitempty"`
	PrizeAmount      decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"prize_amount"`
	PrizeType        *string             `gorm:"size:50" json:"prize_type,omitempty"`
	PrizeDescription *string             `gorm:"type:text" json:"prize_description,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (Prize) TableName() string { return "prizes" }

// Outcome reports whether an idempotent write created a row or found an existing one.
type Outcome string

const (
	Created Outcome = "created"
	Found   Outcome = "found"
)

// Upsert is the result of an idempotent insert.
type Upsert struct {
	ID      uint    `json:"id"`
	Outcome Outcome `json:"outcome"`
}

// optional converts a blank string to nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
