// Package ratelimiter implements fixed-window request counting per key.
//
// The first request in a window creates the counter with value 1 and a TTL of
// the window length. Later requests are rejected once the counter has reached
// the limit and otherwise increment it atomically. When the window expires the
// counter disappears and the next request starts a new window.
//
// With limit 5, five requests in one window leave 4, 3, 2, 1 and 0 remaining;
// the sixth is rejected.
//
// # Failing open
//
// A Limiter never blocks traffic because its store is unavailable. If the
// store returns an error the request is allowed, the result reports the full
// limit as remaining and Result.Degraded is set.
//
// # Stores
//
// RedisStore runs the whole check-and-increment as a single Lua script so
// concurrent admissions across processes cannot undercount. MemoryStore is an
// in-process equivalent for tests and single-instance deployments.
//
//	store := ratelimiter.NewRedisStore(redisClient)
//	limiter, err := ratelimiter.New(store, ratelimiter.Config{Limit: 100, Window: time.Minute})
//	res, err := limiter.Allow(ctx, userID)
//	if !res.Allowed() {
//	    // rate_limit_exceeded
//	}
package ratelimiter
