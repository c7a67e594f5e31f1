package research

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterRateLimits(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 2 {
			return &SearchError{Backend: BackendAcademic, Kind: SearchRateLimited, Detail: "429"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 invocations (2 failures + success), got %d", calls)
	}
}

func TestRetryDoesNotRetryNonRateLimitFailures(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond}

	calls := 0
	wantErr := &SearchError{Backend: BackendWeb, Kind: SearchUnreachable, Detail: "timeout"}
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	})
	var searchErr *SearchError
	if !errors.As(err, &searchErr) || searchErr.Kind != SearchUnreachable {
		t.Fatalf("expected unreachable error to propagate, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("unreachable failures must not be retried, got %d calls", calls)
	}
}

func TestRetryReturnsLastErrorAfterExhaustion(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return &SearchError{Backend: BackendAcademic, Kind: SearchRateLimited, Detail: "429"}
	})
	if calls != 3 {
		t.Fatalf("expected exactly MaxAttempts invocations, got %d", calls)
	}
	if !IsRateLimited(err) {
		t.Fatalf("expected the final rate-limit error, got %v", err)
	}
}

func TestRetryStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	err := policy.Do(ctx, func(context.Context) error {
		calls++
		return &SearchError{Backend: BackendAcademic, Kind: SearchRateLimited, Detail: "429"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", calls)
	}
}

func TestBackoffIsBoundedAndJittered(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond, JitterFraction: 0.25}

	for attempt := 1; attempt <= 5; attempt++ {
		for i := 0; i < 50; i++ {
			delay := policy.backoff(attempt)
			ceiling := time.Duration(float64(policy.MaxDelay) * 1.25)
			if delay > ceiling {
				t.Fatalf("attempt %d: delay %v exceeds jittered ceiling %v", attempt, delay, ceiling)
			}
			if delay <= 0 {
				t.Fatalf("attempt %d: non-positive delay %v", attempt, delay)
			}
		}
	}

	noJitter := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	if got := noJitter.backoff(1); got != 100*time.Millisecond {
		t.Fatalf("attempt 1 without jitter should be base delay, got %v", got)
	}
	if got := noJitter.backoff(3); got != 400*time.Millisecond {
		t.Fatalf("attempt 3 without jitter should be base*4, got %v", got)
	}
}
