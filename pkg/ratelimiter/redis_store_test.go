package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/ratelimiter"
)

func newRedisLimiter(t *testing.T, limit int) (*miniredis.Miniredis, *ratelimiter.Limiter) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	l, err := ratelimiter.New(ratelimiter.NewRedisStore(client),
		ratelimiter.Config{Limit: limit, Window: 60 * time.Second},
		ratelimiter.WithKeyFunc(notification.RateLimitKey))
	require.NoError(t, err)
	return mr, l
}

func TestRedisStore_FixedWindow(t *testing.T) {
	t.Parallel()

	mr, l := newRedisLimiter(t, 5)
	ctx := context.Background()

	for _, want := range []int{4, 3, 2, 1, 0} {
		res, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, want, res.Remaining)
		assert.False(t, res.Degraded)
	}
	assert.Equal(t, 60*time.Second, mr.TTL(notification.RateLimitKey("u1")))

	res, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)

	counter, err := mr.Get(notification.RateLimitKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, "5", counter, "rejected hits must not increment the counter")

	other, err := l.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 4, other.Remaining)

	mr.FastForward(61 * time.Second)

	res, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 4, res.Remaining)
}

func TestRedisStore_FailsOpen(t *testing.T) {
	t.Parallel()

	mr, l := newRedisLimiter(t, 5)
	mr.Close()

	res, err := l.Allow(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.True(t, res.Degraded)
	assert.Equal(t, 5, res.Remaining)
}
