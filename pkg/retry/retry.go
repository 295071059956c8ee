package retry

import (
	"context"
	"log/slog"
	"math"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBase        = 2.0
	DefaultFactor      = 1.0
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor retries operations with exponential backoff. Safe for concurrent use.
type Executor struct {
	maxAttempts int
	base        float64
	factor      float64
	sleep       Sleeper
	logger      *slog.Logger
	onRetry     func(attempt int, err error)
}

// New creates an executor with the given options applied over the defaults.
func New(opts ...Option) *Executor {
	e := &Executor{
		maxAttempts: DefaultMaxAttempts,
		base:        DefaultBase,
		factor:      DefaultFactor,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAttempts returns the configured attempt budget.
func (e *Executor) MaxAttempts() int {
	return e.maxAttempts
}

// Delay returns the backoff before the given retry: factor * base^attempt seconds.
func (e *Executor) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	seconds := e.factor * math.Pow(e.base, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}

// Do runs op up to MaxAttempts times.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			e.logger.Warn("permanent failure, not retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return &MaxRetriesExceededError{Attempts: attempt, Err: err}
		}

		if attempt == e.maxAttempts {
			break
		}

		delay := e.Delay(attempt)
		e.logger.Warn("attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", e.maxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		if e.onRetry != nil {
			e.onRetry(attempt, err)
		}

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	e.logger.Error("all attempts failed",
		slog.Int("max_attempts", e.maxAttempts),
		slog.String("error", lastErr.Error()))

	return &MaxRetriesExceededError{Attempts: e.maxAttempts, Err: lastErr}
}

// Wrap returns op decorated with this executor's retry policy.
func (e *Executor) Wrap(op func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return e.Do(ctx, op)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
