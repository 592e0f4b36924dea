package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/logger"
)

// DefaultPendingLimit bounds ListUnprocessedLinks when no limit is given.
const DefaultPendingLimit = 50

// LinkState is a source link together with its derived processing status.
type LinkState struct {
	Link       event.SourceLink `json:"link"`
	EventCount int64            `json:"event_count"`
	Status     event.LinkStatus `json:"status"`
}

// AddSourceLink stores a discovered URL. A URL that already exists is returned
// unchanged with Outcome Found; only its updated_at is refreshed.
func (s *Store) AddSourceLink(ctx context.Context, in event.SourceLinkInput) (event.Upsert, error) {
	const op = "add_source_link"
	start := time.Now()
	fields := logger.Fields{"url": in.URL}

	link, err := in.Model()
	if err != nil {
		return event.Upsert{}, s.observe(op, start, err, fields)
	}

	var res event.Upsert
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, found, err := findLinkID(tx, link.URL)
		if err != nil {
			return err
		}
		if !found {
			// A concurrent insert of the same URL leaves RowsAffected at 0.
			created := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "url"}},
				DoNothing: true,
			}).Create(&link)
			if created.Error != nil {
				if isUniqueViolation(created.Error) {
					return errConflict
				}
				return created.Error
			}
			if created.RowsAffected == 1 && link.ID != 0 {
				res = event.Upsert{ID: link.ID, Outcome: event.Created}
				return nil
			}
			if id, found, err = findLinkID(tx, link.URL); err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("link %q vanished after conflict", link.URL)
			}
		}

		if err := tx.Model(&event.SourceLink{}).Where("id = ?", id).Update("updated_at", time.Now()).Error; err != nil {
			return fmt.Errorf("refreshing link %d: %w", id, err)
		}
		res = event.Upsert{ID: id, Outcome: event.Found}
		return nil
	})

	if errors.Is(err, errConflict) {
		var id uint
		id, _, err = findLinkID(s.db.WithContext(ctx), link.URL)
		res = event.Upsert{ID: id, Outcome: event.Found}
	}
	if err != nil {
		return event.Upsert{}, s.observe(op, start, err, fields)
	}

	fields["id"] = res.ID
	fields["outcome"] = res.Outcome
	return res, s.observe(op, start, nil, fields)
}

func findLinkID(db *gorm.DB, url string) (uint, bool, error) {
	var link event.SourceLink
	err := db.Select("id").Where("url = ?", url).Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up link %q: %w", url, err)
	}
	return link.ID, true, nil
}

// ListUnprocessedLinks returns links no event references yet, oldest first.
func (s *Store) ListUnprocessedLinks(ctx context.Context, limit int) ([]event.SourceLink, error) {
	const op = "list_unprocessed_links"
	start := time.Now()
	if limit <= 0 {
		limit = DefaultPendingLimit
	}

	var links []event.SourceLink
	err := s.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM events WHERE events.url_id = source_links.id)").
		Order("id").
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, s.observe(op, start, err, nil)
	}
	return links, s.observe(op, start, nil, logger.Fields{"count": len(links)})
}

// LinkStatus reports whether a link has been turned into at least one event.
func (s *Store) LinkStatus(ctx context.Context, id uint) (LinkState, error) {
	const op = "link_status"
	start := time.Now()
	fields := logger.Fields{"id": id}
	db := s.db.WithContext(ctx)

	var state LinkState
	if err := db.Take(&state.Link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = fmt.Errorf("source link %d: %w", id, event.ErrNotFound)
		}
		return LinkState{}, s.observe(op, start, err, fields)
	}
	if err := db.Model(&event.Event{}).Where("url_id = ?", id).Count(&state.EventCount).Error; err != nil {
		return LinkState{}, s.observe(op, start, err, fields)
	}
	state.Status = event.StatusFor(state.EventCount)
	return state, s.observe(op, start, nil, fields)
}

// LinkURLs maps each of the given source link ids to its URL. Unknown ids are absent.
func (s *Store) LinkURLs(ctx context.Context, ids []uint) (map[uint]string, error) {
	const op = "link_urls"
	start := time.Now()
	urls := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return urls, nil
	}

	var links []event.SourceLink
	if err := s.db.WithContext(ctx).Select("id", "url").Where("id IN ?", ids).Find(&links).Error; err != nil {
		return nil, s.observe(op, start, err, nil)
	}
	for _, l := range links {
		urls[l.ID] = l.URL
	}
	return urls, s.observe(op, start, nil, logger.Fields{"count": len(urls)})
}
