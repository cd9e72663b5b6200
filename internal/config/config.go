// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Defaults applied by MergeWithDefaults(Defaults()).
const (
	DefaultTimeoutSeconds        = 15
	DefaultBrowserTimeoutSeconds = 30
	DefaultCacheTTLMinutes       = 24 * 60
	DefaultConcurrency           = 4
	DefaultPort                  = 8080
	DefaultMaxBodyBytes          = 5 << 20

	MaxConcurrency = 64
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Fetching
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // HTTP fetch timeout
	UserAgent      string `json:"user_agent,omitempty"`      // User-Agent header for fetches
	MaxBodyBytes   int64  `json:"max_body_bytes,omitempty"`  // Largest page body read

	// Browser fallback
	UseBrowser            bool `json:"use_browser,omitempty"`             // Render pages without image metadata in headless Chrome
	BrowserTimeoutSeconds int  `json:"browser_timeout_seconds,omitempty"` // Per-page render timeout

	// Cache
	DatabaseURL     string `json:"database_url,omitempty"`      // PostgreSQL connection URL
	CacheTTLMinutes int    `json:"cache_ttl_minutes,omitempty"` // How long fetched pages stay fresh
	SkipCache       bool   `json:"skip_cache,omitempty"`        // Always fetch, never store

	// Batch and server
	Concurrency int `json:"concurrency,omitempty"` // Pages resolved in parallel
	Port        int `json:"port,omitempty"`        // HTTP listen port

	// Output
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		TimeoutSeconds:        DefaultTimeoutSeconds,
		MaxBodyBytes:          DefaultMaxBodyBytes,
		BrowserTimeoutSeconds: DefaultBrowserTimeoutSeconds,
		CacheTTLMinutes:       DefaultCacheTTLMinutes,
		Concurrency:           DefaultConcurrency,
		Port:                  DefaultPort,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Zero values are accepted since MergeWithDefaults fills them in.
func (c *Config) Validate() error {
	// Validate numeric ranges
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'timeout_seconds' must be non-negative")
	}
	if c.BrowserTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'browser_timeout_seconds' must be non-negative")
	}
	if c.CacheTTLMinutes < 0 {
		return fmt.Errorf("config error: 'cache_ttl_minutes' must be non-negative")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("config error: 'max_body_bytes' must be non-negative")
	}
	if c.Concurrency < 0 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("config error: 'concurrency' must be between 1 and %d", MaxConcurrency)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535")
	}

	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("config error: invalid 'database_url': %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("config error: 'database_url' must use the postgres scheme, got %q", u.Scheme)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Numeric fields: use default if zero
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.MaxBodyBytes == 0 {
		result.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if result.BrowserTimeoutSeconds == 0 {
		result.BrowserTimeoutSeconds = defaults.BrowserTimeoutSeconds
	}
	if result.CacheTTLMinutes == 0 {
		result.CacheTTLMinutes = defaults.CacheTTLMinutes
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Timeout returns the fetch timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BrowserTimeout returns the render timeout as a duration.
func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.BrowserTimeoutSeconds) * time.Second
}

// CacheTTL returns the page cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}
