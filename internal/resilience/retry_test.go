package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

func fastPolicy() Policy {
	return Policy{
		FailureThreshold:          100,
		ResetTimeout:              time.Minute,
		RequiredHalfOpenSuccesses: 2,
		MaxRetries:                3,
		InitialDelay:              time.Millisecond,
		MaxDelay:                  5 * time.Millisecond,
		Multiplier:                2,
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		policy := fastPolicy()
		cb := NewCircuitBreaker(model.SourceGroww, policy)
		var calls int32

		err := Retry(ctx, cb, policy, nil, func(context.Context) error {
			if atomic.AddInt32(&calls, 1) <= 2 {
				return errUpstream
			}
			return nil
		})

		if err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
		if calls != 3 {
			t.Errorf("Expected 3 invocations, got %d", calls)
		}
	})

	t.Run("exhausts retries", func(t *testing.T) {
		policy := fastPolicy()
		cb := NewCircuitBreaker(model.SourceGroww, policy)
		var calls int32

		err := Retry(ctx, cb, policy, nil, failing(&calls))

		if calls != 4 {
			t.Errorf("Expected MaxRetries+1 = 4 invocations, got %d", calls)
		}
		if !errors.Is(err, apperrors.ErrRetriesExhausted) {
			t.Fatalf("Expected exhausted retries, got %v", err)
		}
		var fe *apperrors.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("Expected FetchError, got %T", err)
		}
		if fe.Attempts != 4 {
			t.Errorf("Expected 4 attempts recorded, got %d", fe.Attempts)
		}
		if !errors.Is(err, apperrors.ErrNetwork) {
			t.Error("Expected last network error to remain in the chain")
		}
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		policy := fastPolicy()
		cb := NewCircuitBreaker(model.SourceGroww, policy)
		var calls int32
		malformed := apperrors.NewMalformedResponseError(model.SourceGroww, "no city data", nil)

		err := Retry(ctx, cb, policy, nil, func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return malformed
		})

		if calls != 1 {
			t.Errorf("Expected 1 invocation, got %d", calls)
		}
		if !errors.Is(err, apperrors.ErrMalformedResponse) {
			t.Errorf("Expected malformed response error, got %v", err)
		}
		if errors.Is(err, apperrors.ErrRetriesExhausted) {
			t.Error("Expected non-retryable error to be returned unwrapped")
		}
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		policy := fastPolicy()
		cb := NewCircuitBreaker(model.SourceGroww, policy)
		var calls int32

		err := Retry(ctx, cb, policy, nil, func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return apperrors.NewHTTPError(model.SourceGroww, 404, "not found")
		})

		if calls != 1 {
			t.Errorf("Expected 1 invocation, got %d", calls)
		}
		if !errors.Is(err, apperrors.ErrHTTPStatus) {
			t.Errorf("Expected HTTP status error, got %v", err)
		}
	})

	t.Run("open circuit is not retried", func(t *testing.T) {
		policy := fastPolicy()
		policy.FailureThreshold = 1
		cb := NewCircuitBreaker(model.SourceGroww, policy)
		var calls int32
		_ = cb.Execute(ctx, failing(&calls))

		err := Retry(ctx, cb, policy, nil, failing(&calls))

		if calls != 1 {
			t.Errorf("Expected no invocation through an open circuit, got %d total", calls)
		}
		if !errors.Is(err, apperrors.ErrCircuitOpen) {
			t.Errorf("Expected circuit open, got %v", err)
		}
	})

	t.Run("breaker opening mid-retry stops the loop", func(t *testing.T) {
		policy := fastPolicy()
		policy.FailureThreshold = 2
		cb := NewCircuitBreaker(model.SourceGroww, policy)
		var calls int32

		err := Retry(ctx, cb, policy, nil, failing(&calls))

		if calls != 2 {
			t.Errorf("Expected 2 invocations before the breaker opened, got %d", calls)
		}
		if !errors.Is(err, apperrors.ErrCircuitOpen) {
			t.Errorf("Expected circuit open, got %v", err)
		}
	})

	t.Run("zero retries runs once", func(t *testing.T) {
		policy := fastPolicy()
		policy.MaxRetries = 0
		cb := NewCircuitBreaker(model.SourceGroww, policy)
		var calls int32

		err := Retry(ctx, cb, policy, nil, failing(&calls))

		if calls != 1 {
			t.Errorf("Expected 1 invocation, got %d", calls)
		}
		if !errors.Is(err, apperrors.ErrRetriesExhausted) {
			t.Errorf("Expected exhausted retries, got %v", err)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		policy := fastPolicy()
		policy.InitialDelay = time.Second
		policy.MaxDelay = time.Second
		cb := NewCircuitBreaker(model.SourceGroww, policy)
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		var calls int32

		start := time.Now()
		err := Retry(cctx, cb, policy, nil, failing(&calls))

		if time.Since(start) > 500*time.Millisecond {
			t.Error("Expected retry loop to stop when the context expired")
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
		if calls != 1 {
			t.Errorf("Expected 1 invocation, got %d", calls)
		}
	})
}

func TestBackoffDelay(t *testing.T) {
	policy := Policy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{60, 10 * time.Second},
		{5000, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(policy, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestJitter(t *testing.T) {
	delay := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		j := jitter(delay)
		if j < 0 || j >= 30*time.Millisecond {
			t.Fatalf("Expected jitter in [0, 30ms), got %v", j)
		}
	}
	if jitter(0) != 0 {
		t.Error("Expected no jitter on a zero delay")
	}
}
