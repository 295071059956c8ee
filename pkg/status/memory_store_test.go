package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/status"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := status.NewMemoryStore(24 * time.Hour)
	store.SetClock(func() time.Time { return now })

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, notification.ErrStatusNotFound)

	rec := notification.NewStatusRecord(notification.Request{RequestID: "n1", Channel: notification.ChannelEmail}, now)
	require.NoError(t, store.Create(ctx, rec))

	got, err := store.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, notification.StatusQueued, got.Status)

	t.Run("update keeps creation ttl", func(t *testing.T) {
		now = now.Add(23 * time.Hour)
		got.MarkSent(now)
		require.NoError(t, store.Update(ctx, got))

		sent, err := store.Get(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, notification.StatusSent, sent.Status)

		now = now.Add(time.Hour)
		_, err = store.Get(ctx, "n1")
		assert.ErrorIs(t, err, notification.ErrStatusNotFound)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("update of expired record recreates it", func(t *testing.T) {
		rec := notification.StatusRecord{ID: "n2", Status: notification.StatusFailed}
		require.NoError(t, store.Update(ctx, rec))

		got, err := store.Get(ctx, "n2")
		require.NoError(t, err)
		assert.Equal(t, notification.StatusFailed, got.Status)
	})
}
