package ratelimit

import "strings"

// exempt routes are never limited: health probes and metric scrapes.
var exempt = map[string]bool{
	"GET /health":  true,
	"GET /metrics": true,
}

// unlimited is returned for exempt routes. A zero limit disables the bucket.
var unlimited = &EndpointConfig{}

// MatchEndpoint returns the tier for a request, or nil to use the default
// limit. An exact path wins; otherwise the longest matching "/"-terminated
// prefix with the same method is used.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if exempt[method+" "+path] {
		return unlimited
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}
