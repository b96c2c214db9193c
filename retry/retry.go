// Package retry runs an operation with exponential backoff.
//
// Dispatch does not retry provider calls itself. The package is used to
// connect stores and is offered to queue layers that re-run a dispatch,
// together with the Retryable() classification carried by provider errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Config describes a backoff schedule.
type Config struct {
	// Attempts is the total number of calls, including the first (default 3).
	// Values below 1 mean a single call.
	Attempts int

	// Delay is the wait before the second call (default 100ms).
	Delay time.Duration

	// MaxDelay caps a single wait (default 30s).
	MaxDelay time.Duration

	// Multiplier grows the wait after each failure (default 2).
	Multiplier float64

	// Jitter randomizes a wait by +/- the given fraction, 0 to 1 (default 0.1).
	Jitter float64

	// IsRetryable classifies errors. Nil means DefaultIsRetryable.
	IsRetryable func(error) bool
}

// DefaultConfig returns the default schedule.
func DefaultConfig() Config {
	return Config{
		Attempts:    3,
		Delay:       100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		Jitter:      0.1,
		IsRetryable: DefaultIsRetryable,
	}
}

// Sentinel errors.
var (
	// ErrNotRetryable is reported when the classifier rejects an error.
	ErrNotRetryable = errors.New("retry: error is not retryable")

	// ErrExhausted is reported when every attempt failed.
	ErrExhausted = errors.New("retry: attempts exhausted")

	// ErrCanceled is reported when the context ends between attempts.
	ErrCanceled = errors.New("retry: context canceled")
)

// Error is returned when Do gives up.
type Error struct {
	// Reason is ErrNotRetryable, ErrExhausted or ErrCanceled.
	Reason error
	// Last is the error of the final call.
	Last error
	// Attempts counts the calls made.
	Attempts int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", e.Reason, e.Attempts, e.Last)
}

// Unwrap exposes both the reason and the last cause.
func (e *Error) Unwrap() []error {
	return []error{e.Reason, e.Last}
}

// Do calls fn until it succeeds, the classifier rejects its error, the
// attempts run out or ctx ends.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = normalize(cfg)

	var last error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last == nil {
				return err
			}
			return &Error{Reason: ErrCanceled, Last: last, Attempts: attempt - 1}
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !cfg.IsRetryable(last) {
			return &Error{Reason: ErrNotRetryable, Last: last, Attempts: attempt}
		}
		if attempt == cfg.Attempts {
			break
		}

		t := time.NewTimer(cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return &Error{Reason: ErrCanceled, Last: last, Attempts: attempt}
		case <-t.C:
		}
	}
	return &Error{Reason: ErrExhausted, Last: last, Attempts: cfg.Attempts}
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var v T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		return err
	})
	return v, err
}

// Backoff returns the wait after the given failed attempt (1-based).
func (c Config) Backoff(attempt int) time.Duration {
	c = normalize(c)
	if attempt < 1 {
		attempt = 1
	}
	d := float64(c.Delay) * math.Pow(c.Multiplier, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter > 0 {
		spread := d * c.Jitter
		d += (rand.Float64()*2 - 1) * spread
	}
	return time.Duration(d)
}

func normalize(c Config) Config {
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	if c.Delay <= 0 {
		c.Delay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	c.Jitter = min(max(c.Jitter, 0), 1)
	if c.IsRetryable == nil {
		c.IsRetryable = DefaultIsRetryable
	}
	return c
}

// DefaultIsRetryable honours a Retryable() bool method anywhere in the
// chain and retries anything else, except context errors.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, retry: false}
}

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, retry: true}
}

type marked struct {
	err   error
	retry bool
}

func (m *marked) Error() string   { return m.err.Error() }
func (m *marked) Unwrap() error   { return m.err }
func (m *marked) Retryable() bool { return m.retry }
