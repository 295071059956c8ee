package status

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/courier/pkg/notification"
)

type entry struct {
	rec       notification.StatusRecord
	expiresAt time.Time
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory status store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = notification.DefaultStatusTTL
	}
	return &MemoryStore{
		records: make(map[string]entry),
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

func (m *MemoryStore) Create(ctx context.Context, rec notification.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[rec.ID] = entry{rec: rec, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (notification.StatusRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.records[id]
	if !ok || !m.now().Before(e.expiresAt) {
		return notification.StatusRecord{}, notification.ErrStatusNotFound
	}
	return e.rec, nil
}

func (m *MemoryStore) Update(ctx context.Context, rec notification.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.records[rec.ID]
	if !ok || !now.Before(e.expiresAt) {
		e.expiresAt = now.Add(m.ttl)
	}
	e.rec = rec
	m.records[rec.ID] = e
	return nil
}

// Len returns the number of live records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, e := range m.records {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
