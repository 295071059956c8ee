package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// KeyFunc maps a subject (user id) to a storage key.
type KeyFunc func(subject string) string

// Limiter applies a fixed-window limit per subject.
type Limiter struct {
	store  Store
	config Config
	key    KeyFunc
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithKeyFunc sets how subjects map to storage keys.
func WithKeyFunc(fn KeyFunc) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.key = fn
		}
	}
}

// WithLogger sets the logger used to report fail-open decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a limiter over the given store.
func New(store Store, config Config, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		store:  store,
		config: config,
		key:    func(s string) string { return s },
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow consumes one request for subject. Store failures fail open: the
// request is allowed with the full limit reported as remaining.
func (l *Limiter) Allow(ctx context.Context, subject string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	count, allowed, resetAt, err := l.store.Hit(ctx, l.key(subject), l.config.Limit, l.config.Window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit store unavailable, failing open",
			slog.String("subject", subject),
			slog.String("error", errors.Join(ErrStoreUnavailable, err).Error()))

		return &Result{
			Limit:     l.config.Limit,
			Remaining: l.config.Limit,
			ResetAt:   l.now().Add(l.config.Window),
			Degraded:  true,
			allowed:   true,
		}, nil
	}

	remaining := 0
	if allowed {
		remaining = max(l.config.Limit-count, 0)
	}

	return &Result{
		Limit:     l.config.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		allowed:   allowed,
	}, nil
}

// Reset clears the window for subject.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	return l.store.Reset(ctx, l.key(subject))
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, c.Window)
	}
	return nil
}
