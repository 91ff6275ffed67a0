// Package cache provides an optional Redis-backed response cache for the
// archiver. Neither upstream sends usable cache headers, so entries expire
// after a fixed TTL chosen by the caller; a fresh hit skips the network
// request entirely, which matters when re-running a backfill over a year
// range that is mostly already archived.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Route:  "races",
//		Params: url.Values{"season": []string{"2024"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from upstream, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, ttl))
//	}
//
// Cache failures are never fatal: the client degrades to a direct fetch.
package cache
