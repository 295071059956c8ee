package broker_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/broker"
)

// closedAddr returns a local address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestDial_NoWaitAfterLastAttempt(t *testing.T) {
	t.Parallel()

	cfg := broker.Config{
		URL:           "amqp://guest:guest@" + closedAddr(t) + "/",
		RetryAttempts: 2,
		RetryInterval: time.Second,
	}

	start := time.Now()
	_, err := broker.Dial(context.Background(), cfg)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, broker.ErrNotReady)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 1900*time.Millisecond)
}

func TestDial_SingleAttempt(t *testing.T) {
	t.Parallel()

	cfg := broker.Config{
		URL:           "amqp://guest:guest@" + closedAddr(t) + "/",
		RetryAttempts: 1,
		RetryInterval: 5 * time.Second,
	}

	start := time.Now()
	_, err := broker.Dial(context.Background(), cfg)

	assert.ErrorIs(t, err, broker.ErrNotReady)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDial_EmptyURL(t *testing.T) {
	t.Parallel()

	_, err := broker.Dial(context.Background(), broker.Config{})
	assert.ErrorIs(t, err, broker.ErrEmptyURL)
}
