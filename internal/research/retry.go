package research

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
)

// RetryPolicy wraps a single upstream call with bounded exponential backoff
// plus jitter. Only rate-limited failures are retried; unreachable or
// malformed responses propagate immediately since repeating them wastes the
// attempt budget.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

func (p RetryPolicy) Do(ctx context.Context, call func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = defaultRetryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRateLimited(lastErr) || attempt == attempts {
			return lastErr
		}
		if err := sleepForRetry(ctx, p.backoff(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	jitter := p.JitterFraction
	if jitter <= 0 {
		return delay
	}
	if jitter >= 1 {
		jitter = 0.99
	}
	factor := 1 - jitter + rand.Float64()*2*jitter
	return time.Duration(float64(delay) * factor)
}

func sleepForRetry(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
