package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iiadata/treaty-crawler/internal/metrics"
)

// RetryPolicy wraps fallible operations in bounded retries with exponential
// backoff. The backoff sleep is cancellable; exhausting the attempts
// propagates the last failure to the caller, which decides the blast radius.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
	onRetry     func()
}

// NewRetryPolicy builds a policy. maxAttempts below 1 is clamped to 1.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryPolicy{maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

// WithRetryHook returns a copy of the policy that also invokes fn on every
// retried attempt.
func (p *RetryPolicy) WithRetryHook(fn func()) *RetryPolicy {
	clone := *p
	clone.onRetry = fn
	return &clone
}

// Do runs op up to maxAttempts times. After a failed attempt k it waits
// baseDelay doubled per attempt, then retries, logging a warning with the
// cause. The wait aborts immediately when ctx is done.
func (p *RetryPolicy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.maxAttempts {
			break
		}
		wait := p.backoff(attempt)
		p.logger.Warn("Operation failed, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Duration("wait", wait),
			zap.Error(lastErr),
		)
		metrics.RetryRecorded(op)
		if p.onRetry != nil {
			p.onRetry()
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", op, p.maxAttempts, lastErr)
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	wait := p.baseDelay
	for i := 1; i < attempt; i++ {
		wait *= 2
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
