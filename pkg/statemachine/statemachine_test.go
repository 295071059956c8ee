package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/statemachine"
)

type state string
type event string

const (
	idle    state = "idle"
	running state = "running"
	done    state = "done"

	start  event = "start"
	finish event = "finish"
)

func newMachine(t *testing.T, opts ...statemachine.Option[state, event]) *statemachine.Machine[state, event] {
	t.Helper()
	base := []statemachine.Option[state, event]{
		statemachine.WithTransition[state, event](idle, start, running),
		statemachine.WithTransition[state, event](running, finish, done),
		statemachine.WithTerminal[state, event](done),
	}
	m, err := statemachine.New(idle, append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func TestMachine_Fire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newMachine(t)

	assert.Equal(t, idle, m.Current())
	assert.True(t, m.CanFire(start))
	assert.False(t, m.CanFire(finish))

	require.NoError(t, m.Fire(ctx, start))
	require.NoError(t, m.Fire(ctx, finish))
	assert.Equal(t, done, m.Current())
	assert.True(t, m.Terminal())
	assert.Equal(t, []state{idle, running, done}, m.Path())

	err := m.Fire(ctx, start)
	assert.ErrorIs(t, err, statemachine.ErrTerminalState)
	assert.False(t, m.CanFire(start))

	m.Reset()
	assert.Equal(t, idle, m.Current())
	assert.Equal(t, []state{idle}, m.Path())
}

func TestMachine_NoTransition(t *testing.T) {
	t.Parallel()

	m := newMachine(t)
	err := m.Fire(context.Background(), finish)
	require.Error(t, err)
	assert.True(t, statemachine.IsNoTransitionAvailableError(err))
	assert.Contains(t, err.Error(), "'idle'")
	assert.Equal(t, idle, m.Current())
}

func TestMachine_Actions(t *testing.T) {
	t.Parallel()

	var seen []string
	record := func(_ context.Context, from, to state, e event) error {
		seen = append(seen, string(from)+">"+string(to))
		return nil
	}
	boom := errors.New("boom")
	failOnFinish := func(_ context.Context, _, _ state, e event) error {
		if e == finish {
			return boom
		}
		return nil
	}

	m := newMachine(t,
		statemachine.WithAction[state, event](record),
		statemachine.WithAction[state, event](failOnFinish),
	)

	require.NoError(t, m.Fire(context.Background(), start))
	err := m.Fire(context.Background(), finish)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, running, m.Current())
	assert.Equal(t, []string{"idle>running", "running>done"}, seen)
}

func TestNew_DuplicateTransition(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(idle,
		statemachine.WithTransition[state, event](idle, start, running),
		statemachine.WithTransition[state, event](idle, start, done),
	)
	assert.ErrorIs(t, err, statemachine.ErrDuplicateTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(idle,
			statemachine.WithTransition[state, event](idle, start, running),
			statemachine.WithTransition[state, event](idle, start, done),
		)
	})
}
