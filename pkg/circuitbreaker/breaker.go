package circuitbreaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed lets calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls immediately.
	StateOpen
	// StateHalfOpen allows a single probe call.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
)

// Breaker guards a single named dependency. Safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time
	logger           *slog.Logger

	state           State
	failures        int
	lastFailureTime time.Time
	probing         bool
}

// New creates a closed breaker for the named dependency.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: DefaultFailureThreshold,
		recoveryTimeout:  DefaultRecoveryTimeout,
		now:              time.Now,
		logger:           slog.Default(),
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the guarded dependency name.
func (b *Breaker) Name() string {
	return b.name
}

// Guard runs op if the breaker allows it and records the outcome.
// When the call is rejected, op is not invoked and ErrOpen is returned.
func (b *Breaker) Guard(ctx context.Context, op func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	err := op(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// Execute is the generic form of Guard for operations that return a value.
func Execute[T any](ctx context.Context, b *Breaker, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := b.Guard(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.lastFailureTime) < b.recoveryTimeout {
			return fmt.Errorf("%w: %s", ErrOpen, b.name)
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return nil

	case StateHalfOpen:
		// Only one probe at a time.
		if b.probing {
			return fmt.Errorf("%w: %s probe in flight", ErrOpen, b.name)
		}
		b.probing = true
		return nil
	}

	return fmt.Errorf("%w: %s", ErrOpen, b.name)
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0

	case StateHalfOpen:
		b.probing = false
		b.failures = 0
		b.transition(StateClosed)
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = b.now()
	b.failures++

	switch b.state {
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.transition(StateOpen)
		}

	case StateHalfOpen:
		b.probing = false
		b.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to

	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelError
	}
	b.logger.Log(context.Background(), level, "circuit breaker state changed",
		slog.String("breaker", b.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("failure_count", b.failures))
}

// State returns the current state. An open breaker whose recovery timeout
// has elapsed is still reported as open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset returns the breaker to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.lastFailureTime = time.Time{}
}

// Stats provides visibility into breaker state for monitoring.
type Stats struct {
	Name            string
	State           string
	FailureCount    int
	LastFailureTime time.Time
}

// Stats returns a snapshot of the breaker counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Name:            b.name,
		State:           b.state.String(),
		FailureCount:    b.failures,
		LastFailureTime: b.lastFailureTime,
	}
}
