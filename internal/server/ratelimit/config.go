package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultLimit is the per-minute request limit for endpoints without a tier.
const DefaultLimit = 600

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", DefaultLimit),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTTL:         getEnvDuration("RATE_LIMIT_IDLE_TTL", DefaultIdleTTL),
		Whitelist:       parseIPList(getEnvString("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: endpointConfigs(
			getEnvInt("RATE_LIMIT_FETCH_LIMIT", 120),
			getEnvInt("RATE_LIMIT_BATCH_LIMIT", 20),
		),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return endpointConfigs(120, 20)
}

// endpointConfigs builds the tiers. fetchLimit applies per minute to
// endpoints that fetch one page; batchLimit per hour to endpoints that fetch many.
func endpointConfigs(fetchLimit, batchLimit int) []EndpointConfig {
	batchBurst := max(1, batchLimit/4)
	return []EndpointConfig{
		// Tier 1: Many outbound fetches per request (strictest limits)
		{Path: "/resolve/batch", Method: "POST", Limit: batchLimit, Window: time.Hour, Burst: batchBurst},
		{Path: "/resolve/batch/stream", Method: "POST", Limit: batchLimit, Window: time.Hour, Burst: batchBurst},
		{Path: "/resolve/feed", Method: "POST", Limit: batchLimit, Window: time.Hour, Burst: batchBurst},

		// Tier 2: One outbound fetch per request
		{Path: "/image", Method: "GET", Limit: fetchLimit, Window: time.Minute, Burst: max(1, fetchLimit/6)},

		// Tier 3: No outbound fetch - handled by default limit
		// Tier 4: Health and metrics (unlimited) - handled by special case in matcher
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
