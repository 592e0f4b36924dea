package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "OPENCALL_"
	// EnvConfigPath names the YAML file when no path is passed to Load.
	EnvConfigPath = envPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, an optional YAML file and
// environment variables, then validates it. An empty path falls back to
// $OPENCALL_CONFIG; with neither, no file is read.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults(New()) {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// OPENCALL_FETCH__MIN_DELAY -> fetch.min_delay
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// defaults flattens c into koanf keys so that later layers replace whole
// values, lists included, instead of merging into them.
func defaults(c *Config) map[string]interface{} {
	return map[string]interface{}{
		"log_level":            c.LogLevel,
		"metrics_textfile":     c.MetricsTextfile,
		"database.driver":      c.Database.Driver,
		"database.dsn":         c.Database.DSN,
		"fetch.min_delay":      c.Fetch.MinDelay,
		"fetch.max_delay":      c.Fetch.MaxDelay,
		"fetch.timeout":        c.Fetch.Timeout,
		"fetch.max_attempts":   c.Fetch.MaxAttempts,
		"fetch.backoff_unit":   c.Fetch.BackoffUnit,
		"fetch.max_body_bytes": c.Fetch.MaxBodyBytes,
		"fetch.user_agents":    c.Fetch.UserAgents,
		"reduce.max_chars":     c.Reduce.MaxChars,
		"reduce.cache_size":    c.Reduce.CacheSize,
		"reduce.cache_ttl":     c.Reduce.CacheTTL,
		"reduce.keywords":      c.Reduce.Keywords,
	}
}
