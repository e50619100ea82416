// Package cache provides an optional Redis-backed cache for fetched page
// bodies. A cached page is served without spending a rate limit permit, so
// repeat runs against slow-moving resources amortize their remote calls.
//
// Keys are derived deterministically from the resource path and its query
// parameters (sorted); credentials are excluded from keys. Entries carry an
// explicit expiry and are also stored with a matching Redis TTL, so Redis
// evicts them on its own.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewStore(redisClient)
//
//	key := cache.Key{
//		Resource: "search",
//		Params:   url.Values{"q": []string{"debates"}, "page": []string{"1"}},
//	}
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the remote API, then:
//		_ = store.Set(ctx, key, body, 5*time.Minute)
//	}
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - pagefetch_cache_hits_total - cache hits
//   - pagefetch_cache_misses_total - cache misses
//   - pagefetch_cache_errors_total{operation} - cache operation errors
package cache
