// Package retrier retries transient failures with capped, jittered backoff.
package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy int

const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
	FibonacciBackoff
)

const maxDelayCeiling = time.Hour

var (
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	ErrInvalidBaseDelay   = errors.New("base delay must be at least 1ms")
	ErrInvalidFactor      = errors.New("factor must be at least 1.0")
	ErrInvalidJitter      = errors.New("jitter must be between 0 and 1")
	ErrAttemptsExhausted  = errors.New("retry attempts exhausted")
)

// Config holds the backoff parameters.
type Config struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps the delay before jitter. Values below BaseDelay are
	// raised to it.
	MaxDelay time.Duration
	// Factor is the growth rate of ExponentialBackoff.
	Factor float64
	// Jitter adds up to this fraction of the delay at random.
	Jitter   float64
	Strategy BackoffStrategy
}

// Option customizes a Retrier.
type Option func(*Retrier)

// WithRetryable replaces IsTemporary as the test for errors worth retrying.
func WithRetryable(fn func(error) bool) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.retryable = fn
		}
	}
}

// WithOnRetry is called before every wait with the failed attempt (starting
// at 1), the upcoming delay and the error.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

// Retrier is safe for concurrent use.
type Retrier struct {
	cfg       Config
	retryable func(error) bool
	onRetry   func(int, time.Duration, error)
}

// New validates cfg and builds a Retrier.
func New(cfg Config, opts ...Option) (*Retrier, error) {
	switch {
	case cfg.MaxAttempts < 1:
		return nil, ErrInvalidMaxAttempts
	case cfg.BaseDelay < time.Millisecond:
		return nil, ErrInvalidBaseDelay
	case cfg.Factor < 1:
		return nil, ErrInvalidFactor
	case cfg.Jitter < 0 || cfg.Jitter > 1:
		return nil, ErrInvalidJitter
	}
	cfg.MaxDelay = max(cfg.MaxDelay, cfg.BaseDelay)

	r := &Retrier{cfg: cfg, retryable: IsTemporary}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run calls fn until it succeeds, returns an error that is not retryable, or
// the attempts run out. Non-retryable errors are returned as they are; an
// exhausted run wraps both ErrAttemptsExhausted and the last error.
func (r *Retrier) Run(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !r.retryable(err) {
			return err
		}
		if attempt >= r.cfg.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, err)
		}

		delay := r.Delay(attempt - 1)
		if r.onRetry != nil {
			r.onRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay returns the wait after the given zero-based retry, jitter included.
func (r *Retrier) Delay(retry int) time.Duration {
	d := min(r.base(retry), float64(r.cfg.MaxDelay))
	if r.cfg.Jitter > 0 {
		d += rand.Float64() * r.cfg.Jitter * d
	}
	return time.Duration(min(d, float64(maxDelayCeiling)))
}

func (r *Retrier) base(retry int) float64 {
	b := float64(r.cfg.BaseDelay)
	switch r.cfg.Strategy {
	case LinearBackoff:
		return b * float64(retry+1)
	case FibonacciBackoff:
		prev, cur := b, b
		for range retry {
			prev, cur = cur, prev+cur
			if cur > float64(r.cfg.MaxDelay) {
				return cur
			}
		}
		return prev
	default:
		return b * math.Pow(r.cfg.Factor, float64(retry))
	}
}
