package fetcher

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// jitterBackOff waits (2^attempt + U(0,1)) units after attempt (0-indexed).
type jitterBackOff struct {
	unit    time.Duration
	attempt int
	rnd     func() float64
}

var _ backoff.BackOff = (*jitterBackOff)(nil)

func (b *jitterBackOff) NextBackOff() time.Duration {
	factor := float64(int64(1)<<uint(b.attempt)) + b.rnd()
	b.attempt++
	return time.Duration(factor * float64(b.unit))
}

func (b *jitterBackOff) Reset() {
	b.attempt = 0
}
