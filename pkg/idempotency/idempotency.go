// Package idempotency records which admission requests have already been
// published. A marker's absence is the only criterion for "not yet processed".
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/courier/pkg/notification"
)

// Store tracks processed request ids.
type Store interface {
	IsProcessed(ctx context.Context, requestID string) (bool, error)
	MarkProcessed(ctx context.Context, requestID string) error
}

type marker struct {
	Processed bool      `json:"processed"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisStore implements Store on Redis under notification.ProcessedKey.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed marker store. A non-positive ttl
// falls back to notification.DefaultIdempotencyTTL.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = notification.DefaultIdempotencyTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) IsProcessed(ctx context.Context, requestID string) (bool, error) {
	n, err := s.client.Exists(ctx, notification.ProcessedKey(requestID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency marker %s: %w", requestID, err)
	}
	return n > 0, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, requestID string) error {
	data, err := json.Marshal(marker{Processed: true, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, notification.ProcessedKey(requestID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set idempotency marker %s: %w", requestID, err)
	}
	return nil
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	markers map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory marker store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = notification.DefaultIdempotencyTTL
	}
	return &MemoryStore{
		markers: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) IsProcessed(ctx context.Context, requestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.markers[requestID]
	return ok && m.now().Before(exp), nil
}

func (m *MemoryStore) MarkProcessed(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.markers[requestID] = m.now().Add(m.ttl)
	return nil
}

// Count returns the number of live markers.
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, exp := range m.markers {
		if now.Before(exp) {
			n++
		}
	}
	return n
}
