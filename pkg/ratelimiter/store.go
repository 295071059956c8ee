package ratelimiter

import (
	"context"
	"time"
)

// Store defines the interface for rate limit storage backends.
// Hit must be atomic per key.
type Store interface {
	// Hit records one request against key. count is the counter value after
	// the call; allowed is false if the counter had already reached limit,
	// in which case it is left unchanged.
	Hit(ctx context.Context, key string, limit int, window time.Duration) (count int, allowed bool, resetAt time.Time, err error)

	// Reset clears the counter for the given key.
	Reset(ctx context.Context, key string) error
}
