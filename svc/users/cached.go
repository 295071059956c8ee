package users

import (
	"context"
	"time"

	"github.com/dmitrymomot/courier/pkg/cache"
)

// CacheConfig sizes the profile cache.
type CacheConfig struct {
	TTL  time.Duration `env:"USER_CACHE_TTL" envDefault:"5m"`
	Size int           `env:"USER_CACHE_SIZE" envDefault:"10000"`
}

// CachedDirectory caches successful lookups of the wrapped Directory.
// Misses and errors are not cached.
type CachedDirectory struct {
	next  Directory
	cache *cache.Cache[string, Profile]
}

// NewCachedDirectory wraps next with a TTL cache.
func NewCachedDirectory(next Directory, cfg CacheConfig, opts ...cache.Option) *CachedDirectory {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Size <= 0 {
		cfg.Size = 10000
	}
	return &CachedDirectory{
		next:  next,
		cache: cache.New[string, Profile](cfg.Size, cfg.TTL, opts...),
	}
}

func (d *CachedDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	if p, ok := d.cache.Get(userID); ok {
		return p, nil
	}

	p, err := d.next.Lookup(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	d.cache.Put(userID, p)
	return p, nil
}

// Invalidate drops a cached profile.
func (d *CachedDirectory) Invalidate(userID string) {
	d.cache.Remove(userID)
}
