// Package retry provides an explicit retry policy for remote calls.
//
// A Policy is a value: components receive one at construction and run every
// remote call through Do. Tests inject Sleep and Rand to observe the backoff
// schedule without waiting.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy describes how a failing operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// Multiplier controls exponential growth of the delay.
	Multiplier float64

	// MaxBackoff caps the delay before jitter is applied.
	MaxBackoff time.Duration

	// Jitter adds a random fraction in [0, Jitter) of the delay.
	Jitter float64

	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	Retryable func(error) bool

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64

	// OnRetry is called before each wait. Optional.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns three attempts with exponential backoff and jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		Multiplier:     2.0,
		MaxBackoff:     30 * time.Second,
		Jitter:         0.2,
	}
}

// WithOnRetry returns a copy of p that calls fn before each wait.
func (p Policy) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Policy {
	p.OnRetry = fn
	return p
}

// Backoff returns the delay after the given failed attempt (1-based),
// without jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * mult)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

func (p Policy) delay(attempt int, err error) time.Duration {
	d := p.Backoff(attempt)
	if ra, ok := retryAfter(err); ok && ra > d {
		d = ra
	}
	if p.Jitter > 0 && d > 0 {
		r := rand.Float64
		if p.Rand != nil {
			r = p.Rand
		}
		d += time.Duration(float64(d) * p.Jitter * r())
	}
	return d
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. It returns the number of attempts made and the last error.
// Waiting stops early with ctx.Err() if ctx is done.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return attempt - 1, err
			}
			return attempt - 1, ctxErr
		}

		err = op(ctx)
		if err == nil {
			return attempt, nil
		}
		if attempt == maxAttempts || !retryable(err) {
			return attempt, unwrapPermanent(err)
		}

		d := p.delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, d)
		}
		if sleepErr := sleep(ctx, d); sleepErr != nil {
			return attempt, err
		}
	}
	return maxAttempts, err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, int, error) {
	var out T
	attempts, err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, attempts, err
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type retryAfterer interface {
	RetryAfterDuration() time.Duration
}

func retryAfter(err error) (time.Duration, bool) {
	var ra retryAfterer
	if errors.As(err, &ra) {
		if d := ra.RetryAfterDuration(); d > 0 {
			return d, true
		}
	}
	return 0, false
}
