package lending

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"libraledger/internal/locks"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 10 * time.Millisecond
	retryJitterFactor    = 0.3
)

// retryBusy runs fn, retrying on lock contention with exponential
// backoff and jitter. All other errors fail fast. The final attempt's
// error is surfaced as-is, so exhausted contention still reads as
// locks.ErrBusy to the caller.
func retryBusy(ctx context.Context, attempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryBase
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			jitter := time.Duration(rand.Float64() * float64(delay) * retryJitterFactor)

			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, locks.ErrBusy) {
			return lastErr
		}
	}
	return lastErr
}
