// Package ratelimit provides token-bucket politeness limiters so the fixed
// inter-request delays compose with a concurrent worker pool instead of
// becoming global sleeps.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/iiadata/treaty-crawler/internal/metrics"
)

// Interval paces callers to at most one event per configured interval.
type Interval struct {
	phase   string
	limiter *rate.Limiter
}

// NewInterval builds a limiter emitting one token per interval. A
// non-positive interval disables pacing.
func NewInterval(phase string, interval time.Duration) *Interval {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Interval{
		phase:   phase,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until a token is available or the context is done.
func (i *Interval) Wait(ctx context.Context) error {
	start := time.Now()
	if err := i.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait (%s): %w", i.phase, err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(i.phase, delay)
	}
	return nil
}
