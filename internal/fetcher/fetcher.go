package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/net/html/charset"

	"github.com/pfrederiksen/opencall-events/internal/logger"
)

// Config controls rate limiting, retries and response handling.
type Config struct {
	MinDelay     time.Duration `koanf:"min_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxAttempts  int           `koanf:"max_attempts"`
	BackoffUnit  time.Duration `koanf:"backoff_unit"`
	MaxBodyBytes int64         `koanf:"max_body_bytes"`
	UserAgents   []string      `koanf:"user_agents"`
}

// DefaultUserAgents is the identity pool rotated across attempts.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MinDelay:     2 * time.Second,
		MaxDelay:     8 * time.Second,
		Timeout:      30 * time.Second,
		MaxAttempts:  3,
		BackoffUnit:  time.Second,
		MaxBodyBytes: 10 << 20,
		UserAgents:   DefaultUserAgents,
	}
}

// Fetcher retrieves page bodies. It is safe for concurrent use; all callers
// share its RateLimiter.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *RateLimiter
	rnd     *lockedRand
	log     *logger.Logger
	metrics *logger.Metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithConfig replaces the default configuration. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(f *Fetcher) {
		def := DefaultConfig()
		if cfg.MinDelay < 0 {
			cfg.MinDelay = 0
		}
		if cfg.MaxDelay < cfg.MinDelay {
			cfg.MaxDelay = cfg.MinDelay
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = def.Timeout
		}
		if cfg.MaxAttempts < 1 {
			cfg.MaxAttempts = def.MaxAttempts
		}
		if cfg.BackoffUnit < 0 {
			cfg.BackoffUnit = 0
		}
		if cfg.MaxBodyBytes <= 0 {
			cfg.MaxBodyBytes = def.MaxBodyBytes
		}
		if len(cfg.UserAgents) == 0 {
			cfg.UserAgents = def.UserAgents
		}
		f.cfg = cfg
	}
}

// WithHTTPClient sets the client used for requests. Its Timeout is ignored in
// favour of the per-attempt timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRateLimiter shares an existing limiter, capping the combined rate of every
// Fetcher that holds it.
func WithRateLimiter(l *RateLimiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithRand seeds jitter, delay and User-Agent selection.
func WithRand(r *rand.Rand) Option {
	return func(f *Fetcher) { f.rnd = newLockedRand(r) }
}

// WithLogger sets the logger. Defaults to logger.Default().
func WithLogger(l *logger.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// WithMetrics sets the metrics tracker. Defaults to logger.DefaultMetrics().
func WithMetrics(m *logger.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:    DefaultConfig(),
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rnd == nil {
		f.rnd = newLockedRand(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	if f.limiter == nil {
		f.limiter = NewRateLimiter(f.cfg.MinDelay, f.cfg.MaxDelay)
		f.limiter.rnd = f.rnd
	}
	if f.log == nil {
		f.log = logger.Default()
	}
	if f.metrics == nil {
		f.metrics = logger.DefaultMetrics()
	}
	return f
}

// Limiter returns the rate limiter this Fetcher waits on.
func (f *Fetcher) Limiter() *RateLimiter {
	return f.limiter
}

// Fetch returns the body of url decoded to UTF-8. Each attempt is bounded by
// timeout, or by Config.Timeout when timeout is zero. Cancelling ctx aborts the
// rate-limit wait, any backoff and the in-flight request.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	log := f.log.With(logger.Fields{"request_id": uuid.NewString(), "url": url})
	start := time.Now()

	if err := f.limiter.Wait(ctx); err != nil {
		f.metrics.IncrCounter("fetch.failures")
		return "", &FetchError{URL: url, LastCause: err}
	}

	var (
		attempts   int
		lastStatus int
	)
	operation := func() (string, error) {
		attempts++
		f.metrics.IncrCounter("fetch.attempts")
		log.Debug("fetch attempt", logger.Fields{"attempt": attempts})

		body, status, err := f.attempt(ctx, url, timeout)
		if status != 0 {
			lastStatus = status
		}
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	notify := func(err error, wait time.Duration) {
		f.metrics.IncrCounter("fetch.retries")
		log.Warn("fetch attempt failed, backing off", logger.Fields{
			"attempt": attempts,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}

	policy := &jitterBackOff{unit: f.cfg.BackoffUnit, rnd: f.rnd.Float64}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.cfg.MaxAttempts-1)), ctx)

	body, err := backoff.RetryNotifyWithData(operation, b, notify)
	f.metrics.RecordTiming("fetch.duration", time.Since(start))
	if err != nil {
		f.metrics.IncrCounter("fetch.failures")
		fetchErr := &FetchError{URL: url, Attempts: attempts, StatusCode: lastStatus, LastCause: err}
		log.Error("fetch failed", logger.Fields{"attempts": attempts, "status": lastStatus}, err)
		return "", fetchErr
	}

	f.limiter.Mark()
	f.metrics.IncrCounter("fetch.success")
	log.Info("fetched page", logger.Fields{
		"attempts": attempts,
		"bytes":    len(body),
		"elapsed":  time.Since(start).String(),
	})
	return body, nil
}

// attempt performs one request. The returned status is 0 when no response arrived.
func (f *Fetcher) attempt(ctx context.Context, url string, timeout time.Duration) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return "", resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("detecting charset: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("reading body: %w", err)
	}
	return string(data), resp.StatusCode, nil
}

func (f *Fetcher) userAgent() string {
	return f.cfg.UserAgents[f.rnd.Intn(len(f.cfg.UserAgents))]
}
