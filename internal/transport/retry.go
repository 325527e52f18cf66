package transport

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a call retry loop.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration

	// Sleep is replaceable in tests; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: time.Second}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. Rate limited and transient failures are retried
// after the policy delay, or the server's retry_after when that is longer.
// The last error is returned unchanged.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		switch Classify(err) {
		case ClassRateLimited, ClassTransient:
		default:
			return err
		}
		if attempt == attempts {
			break
		}
		delay := p.Delay
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > delay {
			delay = apiErr.RetryAfter
		}
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
