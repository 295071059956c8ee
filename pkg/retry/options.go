package retry

import (
	"log/slog"
)

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts sets the total number of attempts, including the first one.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the exponential base and the multiplying factor.
func WithBackoff(base, factor float64) Option {
	return func(e *Executor) {
		if base > 0 {
			e.base = base
		}
		if factor > 0 {
			e.factor = factor
		}
	}
}

// WithSleeper replaces the backoff sleep. Intended for tests.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithOnRetry registers a callback invoked before each backoff sleep.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(e *Executor) {
		e.onRetry = fn
	}
}

// WithLogger sets the logger for attempt failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Config holds retry settings loadable from the environment.
type Config struct {
	MaxAttempts   int     `env:"MAX_RETRY_ATTEMPTS" envDefault:"3"`
	BackoffBase   float64 `env:"RETRY_BACKOFF_BASE" envDefault:"2"`
	BackoffFactor float64 `env:"RETRY_BACKOFF_FACTOR" envDefault:"1"`
}

// Options converts the config into executor options.
func (c Config) Options() []Option {
	return []Option{
		WithMaxAttempts(c.MaxAttempts),
		WithBackoff(c.BackoffBase, c.BackoffFactor),
	}
}
