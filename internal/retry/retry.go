// File: internal/retry/retry.go

// Package retry provides a small fixed-delay retry wrapper for fallible
// operations. Callers receive an absent result instead of an error once the
// policy is exhausted, so a failed step can be isolated without aborting the
// surrounding run.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy controls how often and how quickly an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// Delay is the fixed pause between consecutive attempts.
	Delay time.Duration
}

// DefaultPolicy mirrors the portal's tolerances: three attempts, one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: time.Second}
}

// Do invokes op until it succeeds or the policy is exhausted. Every failed
// attempt before the last emits a warning and waits out the policy delay; the
// final failure emits a single error. The boolean result reports presence:
// callers must treat a false as "this step could not complete" and stop only
// their own unit of work.
func Do[T any](ctx context.Context, logger *zap.Logger, policy Policy, name string, op func(context.Context) (T, error)) (T, bool) {
	var zero T

	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, true
		}

		if attempt == policy.MaxAttempts {
			logger.Error("All attempts failed",
				zap.String("operation", name),
				zap.Int("attempts", policy.MaxAttempts),
				zap.Error(err),
			)
			return zero, false
		}

		logger.Warn("Attempt failed, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("delay", policy.Delay),
			zap.Error(err),
		)

		if err := sleep(ctx, policy.Delay); err != nil {
			logger.Error("Retry aborted by context",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return zero, false
		}
	}

	return zero, false
}

// sleep waits for d or until the context is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
