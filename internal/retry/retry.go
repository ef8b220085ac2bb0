// Package retry runs an operation under a fixed-delay attempt policy.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy bounds how often an operation is attempted. MaxAttempts <= 0 retries until the context ends.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// FailFast makes a single attempt.
func FailFast() Policy { return Policy{MaxAttempts: 1} }

// Forever retries with delay until success or cancellation.
func Forever(delay time.Duration) Policy { return Policy{MaxAttempts: 0, Delay: delay} }

// Fixed makes at most n attempts separated by delay.
func Fixed(n int, delay time.Duration) Policy { return Policy{MaxAttempts: n, Delay: delay} }

func (p Policy) unbounded() bool { return p.MaxAttempts <= 0 }

// Do calls fn until it succeeds or the policy is exhausted. The last error is returned wrapped with the attempt count.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(ctx context.Context, attempt int) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	for attempt := 1; p.unbounded() || attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s: %w (last error: %v)", op, err, lastErr)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if !p.unbounded() && attempt == p.MaxAttempts {
			break
		}
		logger.Warn("retry.attempt_failed",
			"op", op,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay_ms", p.Delay.Milliseconds(),
			"error", lastErr,
		)

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, p.MaxAttempts, lastErr)
}
