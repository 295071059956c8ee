// Package cache provides a generic, thread-safe LRU cache whose entries
// expire after a fixed time-to-live.
//
// The worker uses it to hold user contact and preference lookups for a few
// minutes, bounding load on the user service while letting preference changes
// take effect shortly after they are made.
//
//	users := cache.New[string, users.Profile](10000, 5*time.Minute)
//	users.Put(id, profile)
//	if p, ok := users.Get(id); ok {
//		// fresh hit
//	}
//
// An entry is dropped when it is older than the TTL or when the cache is at
// capacity and it is the least recently used one. Expired entries are removed
// lazily on access.
package cache
