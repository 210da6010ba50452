package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "picsum"

// CacheKey represents a unique identifier for a cached service response.
type CacheKey struct {
	// Endpoint is the service path (e.g., "/v2/list" or "/id/237/info")
	Endpoint string

	// QueryParams are the query parameters (e.g., page=2, limit=20)
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: picsum:endpoint:query1=val1:query2=val2
//
// Example:
//
//	picsum:v2/list:limit=20:page=2
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
