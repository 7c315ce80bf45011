package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// IsRetryableFunc decides whether an error is worth another attempt
type IsRetryableFunc func(error) bool

// Options configures the retry behavior
type Options struct {
	// MaxRetries is the maximum number of retry attempts (not including the initial attempt)
	MaxRetries int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// BackoffFactor is the factor by which the delay increases after each retry
	BackoffFactor float64

	// JitterFactor adds randomness to the delay (0.0 = no jitter, 1.0 = 100% jitter)
	JitterFactor float64

	// RetryableErrors are matched as substrings of the error message
	RetryableErrors []string

	// IsRetryableFunc takes precedence over RetryableErrors when set
	IsRetryableFunc IsRetryableFunc

	// OnRetry is called before sleeping ahead of the next attempt
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out of
// attempts, or ctx is done. The last error is returned unchanged.
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	var delay time.Duration

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if attempt >= opts.MaxRetries || !isRetryable(err, opts) {
			return zero, err
		}

		delay = nextDelay(attempt, delay, opts)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// IsRetryable reports whether the error message contains any of the given substrings
func IsRetryable(err error, retryableErrors []string) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	for _, retryableErr := range retryableErrors {
		if strings.Contains(errMsg, strings.ToLower(retryableErr)) {
			return true
		}
	}

	return false
}

func isRetryable(err error, opts Options) bool {
	if opts.IsRetryableFunc != nil {
		return opts.IsRetryableFunc(err)
	}
	return IsRetryable(err, opts.RetryableErrors)
}

func nextDelay(attempt int, previous time.Duration, opts Options) time.Duration {
	delay := opts.InitialDelay
	if attempt > 0 {
		delay = time.Duration(float64(previous) * opts.BackoffFactor)
	}
	if opts.MaxDelay > 0 && delay > opts.MaxDelay {
		delay = opts.MaxDelay
	}

	if opts.JitterFactor > 0 {
		jitter := float64(delay) * opts.JitterFactor
		delay = time.Duration(float64(delay) + (rand.Float64()*jitter*2 - jitter))
	}
	return delay
}
