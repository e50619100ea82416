package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies one cached page: the resource path plus its query
// parameters. Credentials must not be part of the key.
type Key struct {
	Resource string
	Params   url.Values
}

// String generates a deterministic cache key string.
// Format: pagefetch:resource:param1=val1:param2=val2
//
// Example:
//
//	pagefetch:search:page=2:pageSize=50:q=debates
func (k Key) String() string {
	parts := []string{"pagefetch"}

	resource := strings.Trim(k.Resource, "/")
	if resource != "" {
		parts = append(parts, resource)
	}

	// Sort params for determinism.
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			for _, value := range k.Params[key] {
				parts = append(parts, fmt.Sprintf("%s=%s", key, value))
			}
		}
	}

	return strings.Join(parts, ":")
}
