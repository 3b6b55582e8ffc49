package postgres

import (
	"context"
	"errors"
	"time"

	"fleet-track/internal/ports"

	"github.com/jackc/pgx/v5"
)

const (
	retryAttempts       = 3
	retryInitialBackoff = 200 * time.Millisecond
)

// withRetry runs fn up to retryAttempts times with exponential backoff.
// pgx.ErrNoRows is terminal and returned as-is; any error that survives
// the retries is wrapped as a TransientError so callers can tell a
// flaky store apart from a missing or deactivated account.
func withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retryInitialBackoff

	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		select {
		case <-ctx.Done():
			return ports.Transient(op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return ports.Transient(op, err)
}
