package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/filecache/internal/retrier"
)

// ResilienceConfig configures retries and the circuit breaker of a Resilient
// backend.
type ResilienceConfig struct {
	Breaker     gobreaker.Settings
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
}

// DefaultResilienceConfig retries three times with exponential backoff and
// opens the breaker after five consecutive failures.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Breaker: gobreaker.Settings{
			Name:        "backend",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		},
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    400 * time.Millisecond,
		Factor:      2,
		Jitter:      0.1,
	}
}

// Resilient retries transient backend failures and stops calling a failing
// backend through a circuit breaker. Missing files are a normal answer: they
// are never retried and never count against the breaker.
type Resilient struct {
	next    Backend
	retrier *retrier.Retrier
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ Backend = (*Resilient)(nil)

// NewResilient wraps next. A nil logger disables logging.
func NewResilient(next Backend, cfg ResilienceConfig, logger *zap.Logger) (*Resilient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r, err := retrier.New(retrier.Config{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Factor:      cfg.Factor,
		Jitter:      cfg.Jitter,
		Strategy:    retrier.ExponentialBackoff,
	},
		retrier.WithRetryable(retryable),
		retrier.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			logger.Debug("Retrying backend call",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	settings := cfg.Breaker
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !retryable(err)
		}
	}
	onStateChange := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("Backend circuit breaker changed state",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if onStateChange != nil {
			onStateChange(name, from, to)
		}
	}

	return &Resilient{
		next:    next,
		retrier: r,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}, nil
}

// Stat implements Backend.
func (r *Resilient) Stat(ctx context.Context, path string) (Info, error) {
	var info Info
	err := r.execute(ctx, func(ctx context.Context) error {
		var err error
		info, err = r.next.Stat(ctx, path)
		return err
	})
	return info, err
}

// Read implements Backend.
func (r *Resilient) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := r.execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = r.next.Read(ctx, path)
		return err
	})
	return data, err
}

// State returns the breaker's current state.
func (r *Resilient) State() gobreaker.State {
	return r.breaker.State()
}

func (r *Resilient) execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.retrier.Run(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("backend unavailable: %w", err)
	}
	return err
}

// retryable treats everything except a missing file and a finished context as
// transient.
func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
