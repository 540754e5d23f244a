package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skycms/skycms/internal/foundation/errors"
)

// Do runs fn, retrying transient failures according to the policy. Delays
// honor context cancellation. Non-transient errors return immediately; an
// exhausted policy returns the last error wrapped with the attempt count.
func Do(ctx context.Context, policy Policy, logger *slog.Logger, op string, fn func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt)
			logger.Info("retrying after transient failure",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.IsTransient(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, policy.MaxRetries+1, lastErr)
}
