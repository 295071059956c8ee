package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript returns {allowed, count, pttl}. The counter is created with the
// window TTL on first hit and never incremented past the limit.
var hitScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	redis.call('SET', KEYS[1], 1, 'PX', ARGV[2])
	return {1, 1, tonumber(ARGV[2])}
end

local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	ttl = tonumber(ARGV[2])
end

current = tonumber(current)
if current >= tonumber(ARGV[1]) then
	return {0, current, ttl}
end

local n = redis.call('INCR', KEYS[1])
return {1, n, ttl}
`)

// RedisStore implements Store on Redis.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (int, bool, time.Time, error) {
	res, err := hitScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, time.Time{}, err
	}
	if len(res) != 3 {
		return 0, false, time.Time{}, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}

	resetAt := s.now().Add(time.Duration(res[2]) * time.Millisecond)
	return int(res[1]), res[0] == 1, resetAt, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
