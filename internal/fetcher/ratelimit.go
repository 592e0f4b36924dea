package fetcher

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter spaces requests by a random delay drawn from [min, max], measured
// from the last successful request. It throttles aggregate rate, not per host.
type RateLimiter struct {
	mu   sync.Mutex
	min  time.Duration
	max  time.Duration
	last time.Time
	rnd  *lockedRand
	now  func() time.Time
}

// NewRateLimiter creates a limiter with the given delay window. A max below min
// is raised to min.
func NewRateLimiter(min, max time.Duration) *RateLimiter {
	if max < min {
		max = min
	}
	return &RateLimiter{
		min: min,
		max: max,
		rnd: newLockedRand(rand.New(rand.NewSource(time.Now().UnixNano()))),
		now: time.Now,
	}
}

// delay draws the spacing required before the next request.
func (r *RateLimiter) delay() time.Duration {
	if r.max == r.min {
		return r.min
	}
	return r.min + time.Duration(r.rnd.Float64()*float64(r.max-r.min))
}

// Wait blocks until the drawn delay has elapsed since the last successful request.
// Waiters are served one at a time. It returns ctx.Err() if ctx ends first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last.IsZero() {
		return ctx.Err()
	}
	remaining := r.delay() - r.now().Sub(r.last)
	return sleep(ctx, remaining)
}

// Mark records a successful request.
func (r *RateLimiter) Mark() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = r.now()
}

// Last returns the time of the last successful request.
func (r *RateLimiter) Last() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// lockedRand makes a *rand.Rand safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(r *rand.Rand) *lockedRand {
	return &lockedRand{r: r}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
