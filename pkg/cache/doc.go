// Package cache stores photo service responses in Redis and revalidates
// them with conditional requests.
//
// Entries live in Redis for their freshness lifetime plus a stale window.
// A fresh entry is served without touching the service; a stale entry that
// carries an ETag or Last-Modified validator is revalidated with
// If-None-Match / If-Modified-Since, and a 304 extends its lifetime.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, cache.DefaultStaleTTL)
//
//	key := cache.CacheKey{
//		Endpoint:    "/v2/list",
//		QueryParams: url.Values{"page": {"1"}, "limit": {"20"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the service, then:
//		entry, _ = cache.ResponseToEntry(resp)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - picsum_cache_hits_total{freshness="fresh|stale"}
//   - picsum_cache_misses_total
//   - picsum_cache_size_bytes
//   - picsum_304_responses_total
//   - picsum_conditional_requests_total
//   - picsum_cache_errors_total{operation}
package cache
