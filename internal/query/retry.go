package query

import (
	"context"
	"time"
)

// withRetry calls fn again after a doubling delay while it fails, at most
// maxRetries extra times. Cancelling ctx ends the wait.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	err := fn(ctx)
	for retry := 0; err != nil && retry < maxRetries; retry++ {
		timer := time.NewTimer(baseDelay << retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = fn(ctx)
	}
	return err
}
