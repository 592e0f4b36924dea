package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/filter"
	"github.com/pfrederiksen/opencall-events/internal/logger"
)

// AddEvent validates and inserts one event. Content duplicates are not
// detected here; CleanupDuplicates removes them later.
func (s *Store) AddEvent(ctx context.Context, in event.EventInput) (uint, error) {
	const op = "add_event"
	start := time.Now()
	fields := logger.Fields{"title": in.Title, "url_id": in.URLID}

	evt, err := in.Model()
	if err != nil {
		return 0, s.observe(op, start, err, fields)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &event.SourceLink{}, "source link", evt.URLID); err != nil {
			if errors.Is(err, event.ErrNotFound) {
				return missingParent("add event", "source link", evt.URLID)
			}
			return err
		}
		return tx.Create(&evt).Error
	})
	if err != nil {
		return 0, s.observe(op, start, classify("add event", err), fields)
	}

	fields["id"] = evt.ID
	return evt.ID, s.observe(op, start, nil, fields)
}

// BulkInsertEvents validates every record, then inserts all of them in one
// transaction. Any failure leaves the store unchanged.
func (s *Store) BulkInsertEvents(ctx context.Context, inputs []event.EventInput) ([]uint, error) {
	const op = "bulk_insert_events"
	start := time.Now()
	fields := logger.Fields{"count": len(inputs)}

	if err := event.ValidateBatch(inputs); err != nil {
		return nil, s.observe(op, start, err, fields)
	}

	events := make([]event.Event, len(inputs))
	linkIDs := make(map[uint]struct{})
	for i, in := range inputs {
		evt, err := in.Model()
		if err != nil {
			return nil, s.observe(op, start, err, fields)
		}
		events[i] = evt
		linkIDs[evt.URLID] = struct{}{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id := range linkIDs {
			if err := requireRow(tx, &event.SourceLink{}, "source link", id); err != nil {
				if errors.Is(err, event.ErrNotFound) {
					return missingParent("bulk insert", "source link", id)
				}
				return err
			}
		}
		return tx.Create(&events).Error
	})
	if err != nil {
		return nil, s.observe(op, start, classify("bulk insert", err), fields)
	}

	ids := make([]uint, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	return ids, s.observe(op, start, nil, fields)
}

// GetEvent loads one event with its fee tiers and prizes.
func (s *Store) GetEvent(ctx context.Context, id uint) (event.Event, error) {
	const op = "get_event"
	start := time.Now()

	var evt event.Event
	err := withChildren(s.db.WithContext(ctx)).Take(&evt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = fmt.Errorf("event %d: %w", id, event.ErrNotFound)
	}
	if err != nil {
		return event.Event{}, s.observe(op, start, err, logger.Fields{"id": id})
	}
	return evt, s.observe(op, start, nil, logger.Fields{"id": id})
}

// DeleteEvent removes an event together with its fee tiers and prizes.
func (s *Store) DeleteEvent(ctx context.Context, id uint) error {
	const op = "delete_event"
	start := time.Now()
	fields := logger.Fields{"id": id}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &event.Event{}, "event", id); err != nil {
			return err
		}
		tiers := tx.Where("event_id = ?", id).Delete(&event.FeeTier{})
		if tiers.Error != nil {
			return tiers.Error
		}
		prizes := tx.Where("event_id = ?", id).Delete(&event.Prize{})
		if prizes.Error != nil {
			return prizes.Error
		}
		fields["fee_tiers"] = tiers.RowsAffected
		fields["prizes"] = prizes.RowsAffected
		return tx.Delete(&event.Event{}, id).Error
	})
	return s.observe(op, start, err, fields)
}

// QueryEventsByCriteria returns events matching every active criterion of f,
// ordered by start date. Fee tiers and prizes are preloaded.
func (s *Store) QueryEventsByCriteria(ctx context.Context, f filter.Filter) ([]event.Event, error) {
	const op = "query_events"
	start := time.Now()
	fields := logger.Fields{"filter": f.String()}

	if err := f.Validate(); err != nil {
		return nil, s.observe(op, start, err, fields)
	}

	q := s.db.WithContext(ctx).Model(&event.Event{})
	if f.DateFrom != nil {
		q = q.Where("events.date_start >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("events.date_end <= ?", *f.DateTo)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		q = q.Where("LOWER(events.location) LIKE ?", "%"+strings.ToLower(loc)+"%")
	}
	if f.HasFeeRange() {
		q = q.Joins("JOIN fee_tiers ON fee_tiers.event_id = events.id").Distinct("events.*")
		if f.FeeMin != nil {
			q = q.Where("fee_tiers.fee_amount >= ?", *f.FeeMin)
		}
		if f.FeeMax != nil {
			q = q.Where("fee_tiers.fee_amount <= ?", *f.FeeMax)
		}
	}

	var events []event.Event
	if err := withChildren(q).Order("events.date_start, events.id").Find(&events).Error; err != nil {
		return nil, s.observe(op, start, err, fields)
	}

	fields["count"] = len(events)
	return events, s.observe(op, start, nil, fields)
}

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("FeeTiers", func(db *gorm.DB) *gorm.DB { return db.Order("fee_tiers.id") }).
		Preload("Prizes", func(db *gorm.DB) *gorm.DB { return db.Order("prizes.id") })
}

// requireRow returns event.ErrNotFound when no row of model's table has id.
func requireRow(tx *gorm.DB, model interface{}, what string, id uint) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s %d: %w", what, id, event.ErrNotFound)
	}
	return nil
}
