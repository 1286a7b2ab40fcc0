package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	defaultRetries   = 2
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 10 * time.Second
	maxJitter        = 250 * time.Millisecond
)

// Options controls how Do re-executes a failing operation.
type Options struct {
	// Retries is the number of re-executions after the first attempt.
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// ShouldRetry decides whether the returned error is worth another
	// attempt. When nil every error is retried.
	ShouldRetry func(error) bool

	randIntn func(int) int
	sleep    func(context.Context, time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.Retries < 0 {
		o.Retries = defaultRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.randIntn == nil {
		o.randIntn = rand.Intn
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

// Do runs fn and re-executes it on retriable errors with exponential
// backoff plus jitter. It returns the last error when attempts run out
// or the context ends while waiting.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if opts.ShouldRetry != nil && !opts.ShouldRetry(lastErr) {
			return lastErr
		}
		if attempt == opts.Retries {
			break
		}

		if err := opts.sleep(ctx, opts.delay(attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

func (o Options) delay(attempt int) time.Duration {
	backoff := float64(o.BaseDelay) * math.Pow(2, float64(attempt))
	delay := time.Duration(backoff)
	if delay > o.MaxDelay || delay <= 0 {
		delay = o.MaxDelay
	}

	if jitterRange := int(maxJitter / time.Millisecond); jitterRange > 0 {
		delay += time.Duration(o.randIntn(jitterRange+1)) * time.Millisecond
	}
	if delay > o.MaxDelay {
		delay = o.MaxDelay
	}

	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
