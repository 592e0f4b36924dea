package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/logger"
)

// CleanupReport counts rows removed by CleanupDuplicates.
type CleanupReport struct {
	SourceLinks    int64 `json:"source_links_removed"`
	EventsRelinked int64 `json:"events_relinked"`
	Events         int64 `json:"events_removed"`
	FeeTiers       int64 `json:"fee_tiers_removed"`
	Prizes         int64 `json:"prizes_removed"`
}

// Total is the number of rows removed.
func (r CleanupReport) Total() int64 {
	return r.SourceLinks + r.Events + r.FeeTiers + r.Prizes
}

// CleanupDuplicates keeps the lowest id of every duplicate group and removes
// the rest, then removes fee tiers and prizes whose event no longer exists.
// Source links are grouped by URL and events by title, start date and venue.
// Events pointing at a removed link are moved to the surviving link first.
func (s *Store) CleanupDuplicates(ctx context.Context) (CleanupReport, error) {
	const op = "cleanup_duplicates"
	start := time.Now()
	var report CleanupReport

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		relinked := tx.Exec(`UPDATE events SET url_id = (
				SELECT MIN(keep.id) FROM source_links keep
				WHERE keep.url = (SELECT dup.url FROM source_links dup WHERE dup.id = events.url_id))
			WHERE url_id IN (
				SELECT id FROM source_links
				WHERE id NOT IN (SELECT MIN(id) FROM source_links GROUP BY url))`)
		if relinked.Error != nil {
			return fmt.Errorf("relinking events: %w", relinked.Error)
		}
		report.EventsRelinked = relinked.RowsAffected

		links := tx.Exec(`DELETE FROM source_links WHERE id NOT IN (SELECT MIN(id) FROM source_links GROUP BY url)`)
		if links.Error != nil {
			return fmt.Errorf("removing duplicate links: %w", links.Error)
		}
		report.SourceLinks = links.RowsAffected

		var dupEvents []uint
		err := tx.Model(&event.Event{}).
			Where("id NOT IN (SELECT MIN(id) FROM events GROUP BY title, date_start, venue)").
			Pluck("id", &dupEvents).Error
		if err != nil {
			return fmt.Errorf("finding duplicate events: %w", err)
		}
		if len(dupEvents) > 0 {
			tiers := tx.Where("event_id IN ?", dupEvents).Delete(&event.FeeTier{})
			if tiers.Error != nil {
				return fmt.Errorf("removing fee tiers of duplicate events: %w", tiers.Error)
			}
			prizes := tx.Where("event_id IN ?", dupEvents).Delete(&event.Prize{})
			if prizes.Error != nil {
				return fmt.Errorf("removing prizes of duplicate events: %w", prizes.Error)
			}
			events := tx.Where("id IN ?", dupEvents).Delete(&event.Event{})
			if events.Error != nil {
				return fmt.Errorf("removing duplicate events: %w", events.Error)
			}
			report.FeeTiers += tiers.RowsAffected
			report.Prizes += prizes.RowsAffected
			report.Events = events.RowsAffected
		}

		tiers := tx.Exec(`DELETE FROM fee_tiers WHERE NOT EXISTS (SELECT 1 FROM events WHERE events.id = fee_tiers.event_id)`)
		if tiers.Error != nil {
			return fmt.Errorf("removing orphaned fee tiers: %w", tiers.Error)
		}
		prizes := tx.Exec(`DELETE FROM prizes WHERE NOT EXISTS (SELECT 1 FROM events WHERE events.id = prizes.event_id)`)
		if prizes.Error != nil {
			return fmt.Errorf("removing orphaned prizes: %w", prizes.Error)
		}
		report.FeeTiers += tiers.RowsAffected
		report.Prizes += prizes.RowsAffected
		return nil
	})
	if err != nil {
		return CleanupReport{}, s.observe(op, start, err, nil)
	}

	s.log.Info("duplicate cleanup finished", logger.Fields{
		"source_links": report.SourceLinks,
		"relinked":     report.EventsRelinked,
		"events":       report.Events,
		"fee_tiers":    report.FeeTiers,
		"prizes":       report.Prizes,
	})
	return report, s.observe(op, start, nil, logger.Fields{"removed": report.Total()})
}

type indexSpec struct {
	name    string
	table   string
	columns []string
}

var indexSpecs = []indexSpec{
	{"idx_events_date_start", "events", []string{"date_start"}},
	{"idx_events_date_end", "events", []string{"date_end"}},
	{"idx_events_location", "events", []string{"location"}},
	{"idx_events_venue", "events", []string{"venue"}},
	{"idx_events_url_id", "events", []string{"url_id"}},
	{"idx_fee_tiers_event_id", "fee_tiers", []string{"event_id"}},
	{"idx_fee_tiers_fee_amount", "fee_tiers", []string{"fee_amount"}},
	{"idx_fee_tiers_commission", "fee_tiers", []string{"commission_percent"}},
	{"idx_fee_tiers_fee_type", "fee_tiers", []string{"fee_type"}},
	{"idx_prizes_event_id", "prizes", []string{"event_id"}},
	{"idx_prizes_amount", "prizes", []string{"prize_amount"}},
	{"idx_prizes_rank", "prizes", []string{"prize_rank"}},
	{"idx_source_links_url", "source_links", []string{"url"}},
}

// IndexError is an index that could not be created.
type IndexError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// IndexReport is the result of EnsureIndexes.
type IndexReport struct {
	Created  []string     `json:"created"`
	Existing []string     `json:"existing"`
	Errors   []IndexError `json:"errors"`
}

// EnsureIndexes creates the query indexes that are missing and refreshes the
// planner statistics. Calling it again reports every index as existing.
func (s *Store) EnsureIndexes(ctx context.Context) (IndexReport, error) {
	const op = "ensure_indexes"
	start := time.Now()
	db := s.db.WithContext(ctx)
	report := IndexReport{Created: []string{}, Existing: []string{}, Errors: []IndexError{}}

	for _, spec := range indexSpecs {
		if err := ctx.Err(); err != nil {
			return report, s.observe(op, start, err, nil)
		}
		if db.Migrator().HasIndex(spec.table, spec.name) {
			report.Existing = append(report.Existing, spec.name)
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", spec.name, spec.table, strings.Join(spec.columns, ", "))
		if err := db.Exec(stmt).Error; err != nil {
			report.Errors = append(report.Errors, IndexError{Name: spec.name, Error: err.Error()})
			continue
		}
		report.Created = append(report.Created, spec.name)
	}

	if err := db.Exec("ANALYZE").Error; err != nil {
		report.Errors = append(report.Errors, IndexError{Name: "analyze", Error: err.Error()})
	}

	s.log.Info("index maintenance finished", logger.Fields{
		"created":  len(report.Created),
		"existing": len(report.Existing),
		"errors":   len(report.Errors),
	})
	return report, s.observe(op, start, nil, nil)
}
