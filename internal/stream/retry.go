package stream

import (
	"context"
	"time"
)

const defaultRetryDelay = 100 * time.Millisecond

// withRetry calls fn until it succeeds, doubling the delay between attempts
// up to maxDelay. A negative maxRetries retries until ctx is done. Terminal
// errors are returned at once.
func withRetry(ctx context.Context, maxRetries int, baseDelay, maxDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isTerminal(err) || (maxRetries >= 0 && attempt >= maxRetries) {
			return err
		}

		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
		delay = nextDelay(delay, maxDelay)
	}
}

func nextDelay(delay, maxDelay time.Duration) time.Duration {
	delay *= 2
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
