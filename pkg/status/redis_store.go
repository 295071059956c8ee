package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/courier/pkg/notification"
)

// RedisStore implements Store on Redis.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed status store. A non-positive ttl
// falls back to notification.DefaultStatusTTL.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = notification.DefaultStatusTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, rec notification.StatusRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode status record: %w", err)
	}
	if err := s.client.Set(ctx, notification.StatusKey(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store status record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (notification.StatusRecord, error) {
	data, err := s.client.Get(ctx, notification.StatusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return notification.StatusRecord{}, notification.ErrStatusNotFound
	}
	if err != nil {
		return notification.StatusRecord{}, fmt.Errorf("failed to load status record %s: %w", id, err)
	}

	var rec notification.StatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return notification.StatusRecord{}, fmt.Errorf("failed to decode status record %s: %w", id, err)
	}
	return rec, nil
}

func (s *RedisStore) Update(ctx context.Context, rec notification.StatusRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode status record: %w", err)
	}

	key := notification.StatusKey(rec.ID)
	err = s.client.SetArgs(ctx, key, data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		// Expired or never created: a KEEPTTL write would persist forever.
		err = s.client.Set(ctx, key, data, s.ttl).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update status record %s: %w", rec.ID, err)
	}
	return nil
}
