// Package redis connects to the Redis server backing the status store,
// idempotency markers and rate-limit counters.
//
// Connect retries until the server answers a PING or the configured timeout
// elapses; Healthcheck returns a probe suitable for liveness endpoints.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Configuration is read from the environment through github.com/caarlos0/env.
package redis
