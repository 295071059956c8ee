package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/idempotency"
	"github.com/dmitrymomot/courier/pkg/notification"
)

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	store := idempotency.NewRedisStore(client, 0)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "req-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.MarkProcessed(ctx, "req-1"))
	assert.Equal(t, notification.DefaultIdempotencyTTL, mr.TTL(notification.ProcessedKey("req-1")))

	processed, err = store.IsProcessed(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, processed)

	mr.FastForward(notification.DefaultIdempotencyTTL + time.Second)

	processed, err = store.IsProcessed(ctx, "req-1")
	require.NoError(t, err)
	assert.False(t, processed)

	mr.Close()
	_, err = store.IsProcessed(ctx, "req-1")
	assert.Error(t, err)
}
