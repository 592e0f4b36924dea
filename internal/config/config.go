// Package config defines the opencall configuration and how it is loaded.
//
// Settings are layered, lowest precedence first:
//  1. defaults (New)
//  2. a YAML file, named by --config or OPENCALL_CONFIG
//  3. environment variables with the OPENCALL_ prefix, using "__" for nesting
//     (OPENCALL_FETCH__MIN_DELAY=1s sets fetch.min_delay)
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/opencall-events/internal/fetcher"
	"github.com/pfrederiksen/opencall-events/internal/logger"
	"github.com/pfrederiksen/opencall-events/internal/reducer"
	"github.com/pfrederiksen/opencall-events/internal/storage"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsTextfile, when set, receives a Prometheus text dump after each command.
	MetricsTextfile string `koanf:"metrics_textfile"`

	Database storage.Config `koanf:"database"`
	Fetch    fetcher.Config `koanf:"fetch"`
	Reduce   ReduceConfig   `koanf:"reduce"`
}

// ReduceConfig controls content reduction.
type ReduceConfig struct {
	MaxChars  int           `koanf:"max_chars"`
	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	Keywords  []string      `koanf:"keywords"`
}

// Options converts the settings into reducer options.
func (r ReduceConfig) Options() []reducer.Option {
	return []reducer.Option{
		reducer.WithMaxChars(r.MaxChars),
		reducer.WithCacheSize(r.CacheSize),
		reducer.WithCacheTTL(r.CacheTTL),
		reducer.WithKeywords(r.Keywords),
	}
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Database: storage.Config{
			Driver: storage.DriverSQLite,
			DSN:    storage.DefaultDSN,
		},
		Fetch: fetcher.DefaultConfig(),
		Reduce: ReduceConfig{
			MaxChars:  reducer.DefaultMaxChars,
			CacheSize: reducer.DefaultCacheSize,
			Keywords:  reducer.DefaultKeywords,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if c.Fetch.MinDelay < 0 {
		errs = append(errs, errors.New("fetch.min_delay must not be negative"))
	}
	if c.Fetch.MinDelay > c.Fetch.MaxDelay {
		errs = append(errs, fmt.Errorf("fetch.min_delay (%s) must not exceed fetch.max_delay (%s)", c.Fetch.MinDelay, c.Fetch.MaxDelay))
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, errors.New("fetch.max_attempts must be at least 1"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Reduce.MaxChars < 1 {
		errs = append(errs, errors.New("reduce.max_chars must be at least 1"))
	}
	if c.Reduce.CacheSize < 0 {
		errs = append(errs, errors.New("reduce.cache_size must not be negative"))
	}

	return errors.Join(errs...)
}
