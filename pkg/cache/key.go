package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response by route and query parameters.
type Key struct {
	// Route is the upstream route (e.g. "races" or "2024/driverStandings").
	Route string

	// Params are the query parameters for the request.
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: f1:route:param1=val1:param2=val2
//
// Example:
//
//	f1:rankings/drivers:season=2024
func (k Key) String() string {
	parts := []string{"f1"}

	route := strings.Trim(k.Route, "/")
	if route != "" {
		parts = append(parts, route)
	}

	// Sort params for determinism.
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.Params[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
