package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
)

// maxJitter is the largest fraction of the computed delay added as jitter.
const maxJitter = 0.3

// Retry runs op through cb, retrying retryable failures with exponential backoff.
//
// The delay before retry n (0-based) is min(InitialDelay × Multiplier^n, MaxDelay)
// plus up to 30% random jitter, always added. op runs at most MaxRetries+1
// times. Circuit-open and other non-retryable errors are returned as is;
// when every attempt failed the last error is wrapped in an
// exhausted_retries FetchError carrying the attempt count.
//
// policy is used as given; start from DefaultPolicy or Policy.Merge for defaults.
func Retry(ctx context.Context, cb *CircuitBreaker, policy Policy, log logrus.FieldLogger, op func(context.Context) error) error {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	entry := logging.Component(log, "retry").WithFields(logrus.Fields{
		"source":       cb.source,
		"operation_id": uuid.NewString(),
	})

	attempts := 0
	var lastErr error

	backoff := retry.WithMaxRetries(uint64(policy.MaxRetries), newBackoff(policy))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := cb.Execute(ctx, op)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperrors.IsRetryable(err) {
			return err
		}
		entry.WithError(err).WithField("attempt", attempts).Warn("upstream attempt failed")
		return retry.RetryableError(err)
	})
	if err == nil {
		if attempts > 1 {
			entry.WithField("attempts", attempts).Info("upstream call succeeded after retry")
		}
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return fmt.Errorf("%s: gave up after %d attempts: %w", cb.source, attempts, err)
	}
	if lastErr == nil || !apperrors.IsRetryable(lastErr) {
		return err
	}

	entry.WithError(lastErr).WithField("attempts", attempts).Error("upstream retries exhausted")
	return apperrors.NewExhaustedRetriesError(cb.source, attempts, lastErr)
}

// newBackoff returns the exponential delay sequence with additive jitter.
// The attempt cap is applied by retry.WithMaxRetries.
func newBackoff(policy Policy) retry.Backoff {
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		delay := backoffDelay(policy, attempt)
		attempt++
		return delay + jitter(delay), false
	})
}

// backoffDelay is min(InitialDelay × Multiplier^attempt, MaxDelay), without jitter.
func backoffDelay(policy Policy, attempt int) time.Duration {
	raw := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if raw > float64(policy.MaxDelay) || math.IsInf(raw, 0) || math.IsNaN(raw) {
		return policy.MaxDelay
	}
	return time.Duration(raw)
}

func jitter(delay time.Duration) time.Duration {
	limit := int64(float64(delay) * maxJitter)
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(limit))
}
