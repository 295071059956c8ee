package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/status"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *status.RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, status.NewRedisStore(client, notification.DefaultStatusTTL)
}

func TestRedisStore_UpdateKeepsTTL(t *testing.T) {
	t.Parallel()

	mr, store := newRedisStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := notification.StatusRecord{ID: "n1", Channel: notification.ChannelEmail, Status: notification.StatusQueued, CreatedAt: created, UpdatedAt: created}
	require.NoError(t, store.Create(ctx, rec))
	assert.Equal(t, 24*time.Hour, mr.TTL(notification.StatusKey("n1")))

	mr.FastForward(10 * time.Hour)

	rec.MarkSent(created.Add(10 * time.Hour))
	require.NoError(t, store.Update(ctx, rec))
	assert.Equal(t, 14*time.Hour, mr.TTL(notification.StatusKey("n1")))

	got, err := store.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, got.Status)
	require.NotNil(t, got.DeliveredAt)
	assert.True(t, got.DeliveredAt.Equal(created.Add(10*time.Hour)))
}

func TestRedisStore_UpdateRecreatesMissingRecord(t *testing.T) {
	t.Parallel()

	mr, store := newRedisStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := notification.StatusRecord{ID: "n2", Status: notification.StatusQueued, CreatedAt: now, UpdatedAt: now}
	rec.MarkFailed(now, 3, "smtp: connection refused")
	require.NoError(t, store.Update(ctx, rec))
	assert.Equal(t, 24*time.Hour, mr.TTL(notification.StatusKey("n2")))

	got, err := store.Get(ctx, "n2")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
}

func TestRedisStore_GetMissing(t *testing.T) {
	t.Parallel()

	mr, store := newRedisStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, notification.ErrStatusNotFound)

	mr.Close()
	_, err = store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.NotErrorIs(t, err, notification.ErrStatusNotFound)
}
