package ratelimit

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Exact path, or a prefix when it ends in "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig reads the RATE_LIMIT_* environment variables.
func LoadConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("RATE_LIMIT")
	v.AutomaticEnv()
	v.SetDefault("ENABLED", true)
	v.SetDefault("DEFAULT_LIMIT", 1000)
	v.SetDefault("DEFAULT_WINDOW", time.Minute)
	v.SetDefault("CLEANUP_INTERVAL", 5*time.Minute)
	v.SetDefault("SUBMIT_PER_HOUR", 30)

	if !v.GetBool("ENABLED") {
		return &Config{Enabled: false}
	}

	endpoints := DefaultEndpointConfigs()
	if n := v.GetInt("SUBMIT_PER_HOUR"); n > 0 {
		endpoints[0].Limit = n
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    v.GetInt("DEFAULT_LIMIT"),
		DefaultWindow:   v.GetDuration("DEFAULT_WINDOW"),
		CleanupInterval: v.GetDuration("CLEANUP_INTERVAL"),
		Whitelist:       parseIPList(v.GetString("WHITELIST")),
		Blacklist:       parseIPList(v.GetString("BLACKLIST")),
		EndpointConfigs: endpoints,
	}
}

// DefaultEndpointConfigs returns the endpoint tiers. The submission tier
// comes first so LoadConfig can override it.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Submission runs the generation pipeline.
		{Path: "/jobs", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/jobs/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		// Artifact downloads may stream large files.
		{Path: "/jobs/", Method: "GET", Limit: 600, Window: time.Minute, Burst: 60},
	}
}

// parseIPList turns "a, b,c" into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
