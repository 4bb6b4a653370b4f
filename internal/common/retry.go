package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrRateLimit marks a call the remote side throttled. The next attempt
	// waits the longest delay.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries is returned once every attempt failed.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError overrides whether an error is worth another attempt.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, Retryable: false}
}

// Backoff retries an operation with exponentially growing delays. The zero
// value makes 3 attempts starting at 100ms, doubling up to 30s.
type Backoff struct {
	Logger     *slog.Logger
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	if b.Multiplier < 1 {
		b.Multiplier = 2
	}
	if b.Logger == nil {
		b.Logger = slog.Default()
	}
	return b
}

// Do runs op until it succeeds, fails permanently, the attempts run out or
// ctx is done. name labels the log lines.
func (b Backoff) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b = b.withDefaults()
	delay := b.Initial

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var retryable *RetryableError
		if errors.As(err, &retryable) && !retryable.Retryable {
			return retryable.Err
		}
		if attempt >= b.Attempts {
			return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrMaxRetries, attempt, err)
		}

		wait := delay
		if errors.Is(err, ErrRateLimit) {
			wait = b.Max
		}
		b.Logger.Warn("Retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", b.Attempts,
			"delay", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = min(time.Duration(float64(delay)*b.Multiplier), b.Max)
	}
}
