// Package cache provides search-page caching with a Redis backend.
//
// Collecting the same leaderboard twice within a short window re-fetches
// identical pages and spends rate-limit quota for nothing. The cache stores
// whole serialized pages keyed by (query, cursor, page size) so a rerun can
// replay them without touching the API, with the following features:
//
// - Deterministic cache key generation
// - TTL management (entries expire both client-side and in Redis)
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.PageKey{
//		Query:    "stars:>1 sort:stars-desc is:public",
//		Cursor:   "",
//		PageSize: 10,
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the API, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(payload, 30*time.Minute))
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - collector_cache_hits_total{layer="redis"} - Cache hits
//   - collector_cache_misses_total - Cache misses
//   - collector_cache_size_bytes{layer="redis"} - Cache size
//   - collector_cache_errors_total{operation} - Cache operation errors
//
// A cache hit spends no quota: replayed pages carry no rate-limit state, so
// the engine never updates its tracker from one.
package cache
