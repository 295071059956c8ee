package circuitbreaker

import (
	"log/slog"
	"time"
)

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failure count that opens the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithRecoveryTimeout sets how long the breaker stays open after the last failure.
func WithRecoveryTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.recoveryTimeout = d
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

// Config holds breaker settings loadable from the environment.
type Config struct {
	FailureThreshold int           `env:"CIRCUIT_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	RecoveryTimeout  time.Duration `env:"CIRCUIT_BREAKER_RECOVERY_TIMEOUT" envDefault:"60s"`
}

// Options converts the config into breaker options.
func (c Config) Options() []Option {
	return []Option{
		WithFailureThreshold(c.FailureThreshold),
		WithRecoveryTimeout(c.RecoveryTimeout),
	}
}
