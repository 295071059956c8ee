package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Action executes side effects during a transition. Returning an error prevents it.
type Action[S, E comparable] func(ctx context.Context, from, to S, event E) error

type transitionKey[S, E comparable] struct {
	from  S
	event E
}

// Machine is a finite state machine over states S and events E.
type Machine[S, E comparable] struct {
	mu          sync.Mutex
	initial     S
	current     S
	path        []S
	transitions map[transitionKey[S, E]]S
	terminal    map[S]struct{}
	actions     []Action[S, E]
}

// Option configures a Machine during construction.
type Option[S, E comparable] func(*Machine[S, E]) error

// WithTransition declares from --event--> to.
func WithTransition[S, E comparable](from S, event E, to S) Option[S, E] {
	return func(m *Machine[S, E]) error {
		key := transitionKey[S, E]{from: from, event: event}
		if _, ok := m.transitions[key]; ok {
			return fmt.Errorf("%w: %v on %v", ErrDuplicateTransition, from, event)
		}
		m.transitions[key] = to
		return nil
	}
}

// WithTerminal marks states that accept no further events.
func WithTerminal[S, E comparable](states ...S) Option[S, E] {
	return func(m *Machine[S, E]) error {
		for _, s := range states {
			m.terminal[s] = struct{}{}
		}
		return nil
	}
}

// WithAction registers an action run on every transition, in registration order.
func WithAction[S, E comparable](action Action[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		if action != nil {
			m.actions = append(m.actions, action)
		}
		return nil
	}
}

// New creates a machine positioned at initial.
func New[S, E comparable](initial S, opts ...Option[S, E]) (*Machine[S, E], error) {
	m := &Machine[S, E]{
		initial:     initial,
		current:     initial,
		path:        []S{initial},
		transitions: make(map[transitionKey[S, E]]S),
		terminal:    make(map[S]struct{}),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on a configuration error.
func MustNew[S, E comparable](initial S, opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

// Current returns the current state.
func (m *Machine[S, E]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Terminal reports whether the current state is terminal.
func (m *Machine[S, E]) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.terminal[m.current]
	return ok
}

// Path returns the states visited so far, starting with the initial one.
func (m *Machine[S, E]) Path() []S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]S(nil), m.path...)
}

// CanFire reports whether event has a transition from the current state.
func (m *Machine[S, E]) CanFire(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.terminal[m.current]; ok {
		return false
	}
	_, ok := m.transitions[transitionKey[S, E]{from: m.current, event: event}]
	return ok
}

// Fire applies event to the current state.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.terminal[m.current]; ok {
		return fmt.Errorf("%w: %v", ErrTerminalState, m.current)
	}

	to, ok := m.transitions[transitionKey[S, E]{from: m.current, event: event}]
	if !ok {
		return NewErrNoTransitionAvailable(m.current, event)
	}

	for _, action := range m.actions {
		if err := action(ctx, m.current, to, event); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.current = to
	m.path = append(m.path, to)
	return nil
}

// Reset returns the machine to its initial state.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
	m.path = []S{m.initial}
}
