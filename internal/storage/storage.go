package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultDSN is the sqlite file used when no DSN is configured.
const DefaultDSN = "~/.local/share/opencall/opencall.db"

// Config selects the database.
type Config struct {
	Driver string `koanf:"driver" json:"driver"`
	DSN    string `koanf:"dsn" json:"dsn"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// Store is the persistence layer. It is safe for concurrent use.
type Store struct {
	db      *gorm.DB
	driver  string
	log     *logger.Logger
	metrics *logger.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to logger.Default().
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics sets the metrics tracker. Defaults to logger.DefaultMetrics().
func WithMetrics(m *logger.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// flatTierIndex allows one flat tier (NULL entry count) per event. Unique
// indexes treat NULLs as distinct, so u_event_entries cannot cover them.
const flatTierIndex = `CREATE UNIQUE INDEX IF NOT EXISTS u_event_flat_tier ON fee_tiers (event_id) WHERE number_entries IS NULL`

var models = []interface{}{
	&event.SourceLink{},
	&event.Event{},
	&event.FeeTier{},
	&event.Prize{},
}

// Open connects to the configured database and migrates the schema.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	s := &Store{driver: cfg.Driver}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	if s.metrics == nil {
		s.metrics = logger.DefaultMetrics()
	}
	s.log = s.log.With(logger.Fields{"component": "storage", "driver": cfg.Driver})

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dsn, err := sqliteDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newGormLog(s.log),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Driver, err)
	}
	s.db = db

	if cfg.Driver == DriverSQLite {
		if err := s.configureSQLite(ctx, isMemoryDSN(cfg.DSN)); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	if err := db.WithContext(ctx).Exec(flatTierIndex).Error; err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating flat tier index: %w", err)
	}

	s.log.Debug("store opened", nil)
	return s, nil
}

// configureSQLite pins sqlite to one connection so pragmas and in-memory
// databases survive for the life of the Store.
func (s *Store) configureSQLite(ctx context.Context, memory bool) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	pragmas := []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if err := s.db.WithContext(ctx).Exec(p).Error; err != nil {
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN expands a leading ~/ and creates the database directory.
func sqliteDSN(dsn string) (string, error) {
	if isMemoryDSN(dsn) {
		return dsn, nil
	}

	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating data directory: %w", err)
		}
	}

	if query != "" {
		return path + "?" + query, nil
	}
	return path, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql connection: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// observe records the outcome of one operation and passes err through.
func (s *Store) observe(op string, start time.Time, err error, fields logger.Fields) error {
	s.metrics.RecordTiming("store."+op+".duration", time.Since(start))
	if fields == nil {
		fields = logger.Fields{}
	}
	fields["op"] = op

	if err != nil {
		s.metrics.IncrCounter("store." + op + ".error")
		if isExpected(err) {
			s.log.Warn("store operation rejected", withError(fields, err))
		} else {
			s.log.Error("store operation failed", fields, err)
		}
		return err
	}

	s.metrics.IncrCounter("store." + op + ".ok")
	s.log.Debug("store operation completed", fields)
	return nil
}

func withError(fields logger.Fields, err error) logger.Fields {
	fields["error"] = err.Error()
	return fields
}

// isExpected reports caller errors that are not store faults.
func isExpected(err error) bool {
	return isAny(err, event.ErrValidation, event.ErrNotFound, ErrUnknownTable)
}
