package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/logger"
)

// AddFeeTier stores a fee tier, or returns the existing tier for the same
// event and entry count. Flat tiers (no entry count) dedupe on the event alone.
func (s *Store) AddFeeTier(ctx context.Context, in event.FeeTierInput) (event.Upsert, error) {
	const op = "add_fee_tier"
	start := time.Now()
	fields := logger.Fields{"event_id": in.EventID}
	if in.NumberEntries != nil {
		fields["number_entries"] = *in.NumberEntries
	}

	tier, err := in.Model()
	if err != nil {
		return event.Upsert{}, s.observe(op, start, err, fields)
	}

	var res event.Upsert
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &event.Event{}, "event", tier.EventID); err != nil {
			if errors.Is(err, event.ErrNotFound) {
				return missingParent("add fee tier", "event", tier.EventID)
			}
			return err
		}

		id, found, err := findTierID(tx, tier)
		if err != nil {
			return err
		}
		if found {
			res = event.Upsert{ID: id, Outcome: event.Found}
			return nil
		}

		// Counted tiers conflict on u_event_entries, flat ones on u_event_flat_tier.
		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tier)
		if created.Error != nil {
			if isUniqueViolation(created.Error) {
				return errConflict
			}
			return created.Error
		}
		if created.RowsAffected == 1 && tier.ID != 0 {
			res = event.Upsert{ID: tier.ID, Outcome: event.Created}
			return nil
		}
		id, _, err = findTierID(tx, tier)
		res = event.Upsert{ID: id, Outcome: event.Found}
		return err
	})

	if errors.Is(err, errConflict) {
		var id uint
		id, _, err = findTierID(s.db.WithContext(ctx), tier)
		res = event.Upsert{ID: id, Outcome: event.Found}
	}
	if err != nil {
		return event.Upsert{}, s.observe(op, start, classify("add fee tier", err), fields)
	}

	fields["id"] = res.ID
	fields["outcome"] = res.Outcome
	return res, s.observe(op, start, nil, fields)
}

func findTierID(db *gorm.DB, tier event.FeeTier) (uint, bool, error) {
	q := db.Model(&event.FeeTier{}).Select("id").Where("event_id = ?", tier.EventID)
	if tier.NumberEntries == nil {
		q = q.Where("number_entries IS NULL")
	} else {
		q = q.Where("number_entries = ?", *tier.NumberEntries)
	}

	var existing event.FeeTier
	err := q.Order("id").Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return existing.ID, true, nil
}

// AddPrize inserts a prize. Prizes are not deduplicated.
func (s *Store) AddPrize(ctx context.Context, in event.PrizeInput) (uint, error) {
	const op = "add_prize"
	start := time.Now()
	fields := logger.Fields{"event_id": in.EventID}

	prize, err := in.Model()
	if err != nil {
		return 0, s.observe(op, start, err, fields)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &event.Event{}, "event", prize.EventID); err != nil {
			if errors.Is(err, event.ErrNotFound) {
				return missingParent("add prize", "event", prize.EventID)
			}
			return err
		}
		return tx.Create(&prize).Error
	})
	if err != nil {
		return 0, s.observe(op, start, classify("add prize", err), fields)
	}

	fields["id"] = prize.ID
	return prize.ID, s.observe(op, start, nil, fields)
}
