package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"},
		WithLogger(logger.New(logger.LevelError, io.Discard)),
		WithMetrics(logger.NewMetrics()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intPtr(n int) *int { return &n }

func countRows(t *testing.T, s *Store, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(model).Count(&n).Error)
	return n
}

func seedLink(t *testing.T, s *Store, url string) uint {
	t.Helper()
	res, err := s.AddSourceLink(context.Background(), event.SourceLinkInput{URL: url})
	require.NoError(t, err)
	return res.ID
}

func seedEvent(t *testing.T, s *Store, in event.EventInput) uint {
	t.Helper()
	id, err := s.AddEvent(context.Background(), in)
	require.NoError(t, err)
	return id
}

func eventInput(linkID uint, title, start, end, venue, location string) event.EventInput {
	return event.EventInput{
		Title:     title,
		DateStart: start,
		DateEnd:   end,
		Venue:     venue,
		Location:  location,
		URLID:     linkID,
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Driver: DriverSQLite, DSN: ":memory:"}.Validate())
	assert.NoError(t, Config{Driver: DriverPostgres, DSN: "host=db"}.Validate())
	assert.Error(t, Config{Driver: "mysql", DSN: "x"}.Validate())
	assert.Error(t, Config{Driver: DriverSQLite}.Validate())

	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "events.db")
	cfg := Config{Driver: DriverSQLite, DSN: path}
	quiet := WithLogger(logger.New(logger.LevelError, io.Discard))

	s, err := Open(context.Background(), cfg, quiet, WithMetrics(logger.NewMetrics()))
	require.NoError(t, err)
	first := seedLink(t, s, "https://a.test/persisted")
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "database file should be created with its directories")

	s, err = Open(context.Background(), cfg, quiet, WithMetrics(logger.NewMetrics()))
	require.NoError(t, err)
	defer s.Close()

	res, err := s.AddSourceLink(context.Background(), event.SourceLinkInput{URL: "https://a.test/persisted"})
	require.NoError(t, err)
	assert.Equal(t, event.Upsert{ID: first, Outcome: event.Found}, res)
}

func TestAddSourceLinkIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddSourceLink(ctx, event.SourceLinkInput{URL: "https://a.test/x", RawTitle: "Open call"})
	require.NoError(t, err)
	assert.Equal(t, event.Upsert{ID: 1, Outcome: event.Created}, first)

	second, err := s.AddSourceLink(ctx, event.SourceLinkInput{URL: "https://a.test/x", RawTitle: "Different"})
	require.NoError(t, err)
	assert.Equal(t, event.Upsert{ID: 1, Outcome: event.Found}, second)
	assert.Equal(t, int64(1), countRows(t, s, &event.SourceLink{}))

	var stored event.SourceLink
	require.NoError(t, s.db.First(&stored, 1).Error)
	require.NotNil(t, stored.RawTitle)
	assert.Equal(t, "Open call", *stored.RawTitle, "existing row must not be overwritten")

	again, err := s.AddSourceLink(ctx, event.SourceLinkInput{URL: "https://a.test/x"})
	require.NoError(t, err)
	assert.Equal(t, event.Upsert{ID: 1, Outcome: event.Found}, again)

	// URLs are compared literally. Repeats above must not consume ids.
	third, err := s.AddSourceLink(ctx, event.SourceLinkInput{URL: "https://a.test/x/"})
	require.NoError(t, err)
	assert.Equal(t, event.Upsert{ID: 2, Outcome: event.Created}, third)
}

func TestAddSourceLinkValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddSourceLink(context.Background(), event.SourceLinkInput{URL: "not a url"})
	assert.ErrorIs(t, err, event.ErrValidation)

	_, err = s.AddSourceLink(context.Background(), event.SourceLinkInput{})
	assert.ErrorIs(t, err, event.ErrValidation)
	assert.Zero(t, countRows(t, s, &event.SourceLink{}))
}

func TestAddEventRejectsInvertedDates(t *testing.T) {
	s := newTestStore(t)
	link := seedLink(t, s, "https://a.test/x")

	_, err := s.AddEvent(context.Background(), eventInput(link, "Summer Open", "2025-06-01", "2025-05-01", "Hall", "Bath"))
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrValidation)
	assert.Zero(t, countRows(t, s, &event.Event{}))
}

func TestAddEventRejectsBlankFields(t *testing.T) {
	s := newTestStore(t)
	link := seedLink(t, s, "https://a.test/x")

	_, err := s.AddEvent(context.Background(), eventInput(link, "   ", "2025-06-01", "2025-06-02", "  ", " "))
	assert.ErrorIs(t, err, event.ErrValidation)
	assert.Zero(t, countRows(t, s, &event.Event{}))
}

func TestAddEventRequiresLink(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddEvent(context.Background(), eventInput(99, "Summer Open", "2025-06-01", "2025-06-02", "Hall", "Bath"))
	assert.ErrorIs(t, err, event.ErrIntegrity)
	assert.Zero(t, countRows(t, s, &event.Event{}))
}

func TestAddFeeTierBounds(t *testing.T) {
	s := newTestStore(t)
	evt := seedEvent(t, s, eventInput(seedLink(t, s, "https://a.test/x"), "Open", "2025-06-01", "2025-06-02", "Hall", "Bath"))

	tests := []struct {
		name string
		in   event.FeeTierInput
	}{
		{"negative amount", event.FeeTierInput{EventID: evt, NumberEntries: intPtr(1), FeeAmount: "-5.00"}},
		{"negative flat rate", event.FeeTierInput{EventID: evt, FeeAmount: "5", FlatRate: "-1"}},
		{"commission above 100", event.FeeTierInput{EventID: evt, FeeAmount: "5", CommissionPercent: "100.01"}},
		{"commission below 0", event.FeeTierInput{EventID: evt, FeeAmount: "5", CommissionPercent: "-0.5"}},
		{"zero entries", event.FeeTierInput{EventID: evt, NumberEntries: intPtr(0), FeeAmount: "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddFeeTier(context.Background(), tt.in)
			assert.ErrorIs(t, err, event.ErrValidation)
		})
	}
	assert.Zero(t, countRows(t, s, &event.FeeTier{}))

	res, err := s.AddFeeTier(context.Background(), event.FeeTierInput{EventID: evt, FeeAmount: "0", CommissionPercent: "100"})
	require.NoError(t, err)
	assert.Equal(t, event.Created, res.Outcome)
}

func TestAddFeeTierUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	evt := seedEvent(t, s, eventInput(seedLink(t, s, "https://a.test/x"), "Open", "2025-06-01", "2025-06-02", "Hall", "Bath"))

	first, err := s.AddFeeTier(ctx, event.FeeTierInput{EventID: evt, NumberEntries: intPtr(1), FeeAmount: "10.00"})
	require.NoError(t, err)
	assert.Equal(t, event.Created, first.Outcome)

	second, err := s.AddFeeTier(ctx, event.FeeTierInput{EventID: evt, NumberEntries: intPtr(1), FeeAmount: "12.00"})
	require.NoError(t, err)
	assert.Equal(t, event.Upsert{ID: first.ID, Outcome: event.Found}, second)

	flat, err := s.AddFeeTier(ctx, event.FeeTierInput{EventID: evt, FeeAmount: "20.00"})
	require.NoError(t, err)
	assert.Equal(t, event.Created, flat.Outcome)
	assert.NotEqual(t, first.ID, flat.ID)

	flatAgain, err := s.AddFeeTier(ctx, event.FeeTierInput{EventID: evt, FeeAmount: "25.00"})
	require.NoError(t, err)
	assert.Equal(t, event.Upsert{ID: flat.ID, Outcome: event.Found}, flatAgain)

	assert.Equal(t, int64(2), countRows(t, s, &event.FeeTier{}))

	next, err := s.AddFeeTier(ctx, event.FeeTierInput{EventID: evt, NumberEntries: intPtr(2), FeeAmount: "15.00"})
	require.NoError(t, err)
	assert.Equal(t, event.Upsert{ID: flat.ID + 1, Outcome: event.Created}, next, "found tiers must not consume ids")

	var stored event.FeeTier
	require.NoError(t, s.db.First(&stored, first.ID).Error)
	assert.Equal(t, "10", stored.FeeAmount.String())
	assert.Equal(t, event.FeeTypeTier, stored.FeeType)
}

func TestFlatTierUniqueIndex(t *testing.T) {
	s := newTestStore(t)
	evt := seedEvent(t, s, eventInput(seedLink(t, s, "https://a.test/x"), "Open", "2025-06-01", "2025-06-02", "Hall", "Bath"))

	_, err := s.AddFeeTier(context.Background(), event.FeeTierInput{EventID: evt, FeeAmount: "20.00"})
	require.NoError(t, err)

	// A second flat tier written behind the store's back hits the partial index.
	dup := event.FeeTier{EventID: evt, FeeType: event.FeeTypeFlat, FeeAmount: decimal.RequireFromString("30")}
	err = s.db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "unexpected error: %v", err)

	counted := event.FeeTier{EventID: evt, FeeType: event.FeeTypeTier, NumberEntries: intPtr(1), FeeAmount: decimal.RequireFromString("10")}
	require.NoError(t, s.db.Create(&counted).Error)
	assert.Equal(t, int64(2), countRows(t, s, &event.FeeTier{}))
}

func TestAddFeeTierRequiresEvent(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddFeeTier(context.Background(), event.FeeTierInput{EventID: 7, NumberEntries: intPtr(1), FeeAmount: "10"})
	assert.ErrorIs(t, err, event.ErrIntegrity)
	_, err = s.AddPrize(context.Background(), event.PrizeInput{EventID: 7, PrizeAmount: "100"})
	assert.ErrorIs(t, err, event.ErrIntegrity)
}

func TestAddPrize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	evt := seedEvent(t, s, eventInput(seedLink(t, s, "https://a.test/x"), "Open", "2025-06-01", "2025-06-02", "Hall", "Bath"))

	_, err := s.AddPrize(ctx, event.PrizeInput{EventID: evt, PrizeRank: intPtr(0)})
	assert.ErrorIs(t, err, event.ErrValidation)
	_, err = s.AddPrize(ctx, event.PrizeInput{EventID: evt, PrizeAmount: "-1"})
	assert.ErrorIs(t, err, event.ErrValidation)

	in := event.PrizeInput{EventID: evt, PrizeRank: intPtr(1), PrizeAmount: "500.00", PrizeType: "cash"}
	a, err := s.AddPrize(ctx, in)
	require.NoError(t, err)
	b, err := s.AddPrize(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "prizes are not deduplicated")
	assert.Equal(t, int64(2), countRows(t, s, &event.Prize{}))
}

func TestBulkInsertEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	link := seedLink(t, s, "https://a.test/x")

	ids, err := s.BulkInsertEvents(ctx, []event.EventInput{
		eventInput(link, "One", "2025-06-01", "2025-06-02", "Hall", "Bath"),
		eventInput(link, "Two", "2025-07-01", "2025-07-02", "Hall", "Bath"),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)

	t.Run("missing field fails whole batch", func(t *testing.T) {
		_, err := s.BulkInsertEvents(ctx, []event.EventInput{
			eventInput(link, "Three", "2025-08-01", "2025-08-02", "Hall", "Bath"),
			eventInput(link, "Four", "2025-08-01", "2025-08-02", "", "Bath"),
		})
		assert.ErrorIs(t, err, event.ErrValidation)
		assert.Contains(t, err.Error(), "record 1")
		assert.Equal(t, int64(2), countRows(t, s, &event.Event{}))
	})

	t.Run("blank required field fails whole batch", func(t *testing.T) {
		_, err := s.BulkInsertEvents(ctx, []event.EventInput{
			eventInput(link, "Three", "2025-08-01", "2025-08-02", "Hall", "Bath"),
			eventInput(link, "   ", "2025-08-01", "2025-08-02", "  ", " "),
		})
		assert.ErrorIs(t, err, event.ErrValidation)
		assert.Contains(t, err.Error(), "record 1")
		assert.Equal(t, int64(2), countRows(t, s, &event.Event{}))
	})

	t.Run("missing link fails whole batch", func(t *testing.T) {
		_, err := s.BulkInsertEvents(ctx, []event.EventInput{
			eventInput(link, "Three", "2025-08-01", "2025-08-02", "Hall", "Bath"),
			eventInput(42, "Four", "2025-08-01", "2025-08-02", "Hall", "Bath"),
		})
		assert.ErrorIs(t, err, event.ErrIntegrity)
		assert.Equal(t, int64(2), countRows(t, s, &event.Event{}))
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := s.BulkInsertEvents(ctx, nil)
		assert.ErrorIs(t, err, event.ErrValidation)
	})
}

func TestGetAndDeleteEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	evt := seedEvent(t, s, eventInput(seedLink(t, s, "https://a.test/x"), "Open", "2025-06-01", "2025-06-02", "Hall", "Bath"))
	_, err := s.AddFeeTier(ctx, event.FeeTierInput{EventID: evt, NumberEntries: intPtr(1), FeeAmount: "10"})
	require.NoError(t, err)
	_, err = s.AddFeeTier(ctx, event.FeeTierInput{EventID: evt, NumberEntries: intPtr(2), FeeAmount: "18"})
	require.NoError(t, err)
	_, err = s.AddPrize(ctx, event.PrizeInput{EventID: evt, PrizeAmount: "250"})
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, "Open", got.Title)
	assert.Equal(t, "2025-06-01", got.DateStart.String())
	assert.Len(t, got.FeeTiers, 2)
	assert.Len(t, got.Prizes, 1)

	require.NoError(t, s.DeleteEvent(ctx, evt))
	assert.Zero(t, countRows(t, s, &event.Event{}))
	assert.Zero(t, countRows(t, s, &event.FeeTier{}))
	assert.Zero(t, countRows(t, s, &event.Prize{}))

	assert.ErrorIs(t, s.DeleteEvent(ctx, evt), event.ErrNotFound)
	_, err = s.GetEvent(ctx, evt)
	assert.ErrorIs(t, err, event.ErrNotFound)
}

func TestListUnprocessedLinksAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedLink(t, s, "https://a.test/1")
	b := seedLink(t, s, "https://a.test/2")
	c := seedLink(t, s, "https://a.test/3")
	seedEvent(t, s, eventInput(b, "Open", "2025-06-01", "2025-06-02", "Hall", "Bath"))

	pending, err := s.ListUnprocessedLinks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a, pending[0].ID)
	assert.Equal(t, c, pending[1].ID)

	pending, err = s.ListUnprocessedLinks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a, pending[0].ID)

	state, err := s.LinkStatus(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, event.StatusProcessed, state.Status)
	assert.Equal(t, int64(1), state.EventCount)
	assert.Equal(t, "https://a.test/2", state.Link.URL)

	state, err = s.LinkStatus(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, event.StatusDiscovered, state.Status)

	_, err = s.LinkStatus(ctx, 99)
	assert.ErrorIs(t, err, event.ErrNotFound)
}

func TestLinkURLs(t *testing.T) {
	s := newTestStore(t)
	a := seedLink(t, s, "https://a.test/1")
	b := seedLink(t, s, "https://a.test/2")

	urls, err := s.LinkURLs(context.Background(), []uint{a, b, 99})
	require.NoError(t, err)
	assert.Equal(t, map[uint]string{a: "https://a.test/1", b: "https://a.test/2"}, urls)

	empty, err := s.LinkURLs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
