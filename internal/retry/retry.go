// Package retry runs an operation with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy parameterizes Do. Zero fields fall back to DefaultPolicy values.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter randomizes each delay by up to half of it in either direction.
	Jitter bool
	// OnRetry, when set, is called before sleeping between attempts.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy is used for order fetches and chunk writes.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Jitter:      true,
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// NewBackOff builds the delay schedule for p: BaseDelay doubling per attempt,
// capped at MaxDelay, with no overall time limit.
func NewBackOff(p Policy) backoff.BackOff {
	p = p.withDefaults()
	b := &backoff.ExponentialBackOff{
		InitialInterval: p.BaseDelay,
		Multiplier:      2,
		MaxInterval:     p.MaxDelay,
		MaxElapsedTime:  0,
		Stop:            backoff.Stop,
		Clock:           backoff.SystemClock,
	}
	if p.Jitter {
		b.RandomizationFactor = 0.5
	}
	b.Reset()
	return b
}

// Do calls op until it succeeds, returns a Permanent error, ctx is done, or
// the policy runs out of attempts.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	p = p.withDefaults()
	if err := ctx.Err(); err != nil {
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(NewBackOff(p), uint64(p.MaxAttempts-1)), ctx)
	attempts := 0
	permanent := false
	var last error
	err := backoff.RetryNotify(func() error {
		attempts++
		last = op(ctx)
		var perm *backoff.PermanentError
		permanent = errors.As(last, &perm)
		return last
	}, b, func(err error, delay time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempts, delay, err)
		}
	})

	switch {
	case err == nil, permanent:
		return err
	case ctx.Err() != nil:
		if last == nil || errors.Is(last, ctx.Err()) {
			return ctx.Err()
		}
		return fmt.Errorf("%w (last error: %v)", ctx.Err(), last)
	default:
		return &ExhaustedError{Attempts: attempts, Err: err}
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	if p.BaseDelay > p.MaxDelay {
		p.BaseDelay = p.MaxDelay
	}
	return p
}
