package service

import (
	"context"
	"errors"
	"time"

	"github.com/PrasangJhawar/storefront/internal/repository"
)

const (
	maxAttempts  = 3
	retryBackoff = 50 * time.Millisecond
)

// withRetry re-runs fn on ErrTxConflict, the one error kind that is safe to
// retry automatically: the failed attempt committed nothing, so re-running
// the same logical operation is idempotent. All other errors pass through.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, repository.ErrTxConflict) {
			return err
		}
		select {
		case <-time.After(retryBackoff << attempt):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
