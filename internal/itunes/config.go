//nolint:tagliatelle // superior snake-case yo.
package itunes

import (
	"fmt"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://itunes.apple.com"

// Config holds iTunes client configuration.
type Config struct {
	BaseURL               string        `yaml:"base_url"`                // API root, no trailing slash
	Country               string        `yaml:"country"`                 // Storefront code
	SearchLimit           int           `yaml:"search_limit"`            // Max results per search
	RequestTimeout        time.Duration `yaml:"request_timeout"`         // Per-attempt timeout for searches
	LookupTimeout         time.Duration `yaml:"lookup_timeout"`          // Per-attempt timeout for track lookups
	SearchAttempts        int           `yaml:"search_attempts"`         // Attempts per search
	LookupAttempts        int           `yaml:"lookup_attempts"`         // Attempts per lookup
	ThrottleBackoff       time.Duration `yaml:"throttle_backoff"`        // Search wait step after 403/429
	LookupThrottleBackoff time.Duration `yaml:"lookup_throttle_backoff"` // Lookup wait step after 403/429
	ErrorBackoff          time.Duration `yaml:"error_backoff"`           // Base wait after other failures, doubled per attempt
}

// Validate validates and sets defaults for Config.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}

	if c.Country == "" {
		c.Country = "DE"
	}

	if c.SearchLimit == 0 {
		c.SearchLimit = 200
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}

	if c.LookupTimeout == 0 {
		c.LookupTimeout = 3 * time.Second
	}

	if c.SearchAttempts == 0 {
		c.SearchAttempts = 3
	}

	if c.LookupAttempts == 0 {
		c.LookupAttempts = 2
	}

	if c.ThrottleBackoff == 0 {
		c.ThrottleBackoff = 5 * time.Second
	}

	if c.LookupThrottleBackoff == 0 {
		c.LookupThrottleBackoff = 2 * time.Second
	}

	if c.ErrorBackoff == 0 {
		c.ErrorBackoff = time.Second
	}

	if c.SearchLimit < 1 || c.SearchLimit > 200 {
		return fmt.Errorf("search_limit must be between 1 and 200, got %d", c.SearchLimit)
	}

	if c.RequestTimeout < 1*time.Second {
		return fmt.Errorf("request_timeout must be at least 1 second, got %v", c.RequestTimeout)
	}

	if c.LookupTimeout < 500*time.Millisecond {
		return fmt.Errorf("lookup_timeout must be at least 500ms, got %v", c.LookupTimeout)
	}

	if c.SearchAttempts < 1 || c.LookupAttempts < 1 {
		return fmt.Errorf("search_attempts and lookup_attempts must be positive")
	}

	if c.ThrottleBackoff < 0 || c.LookupThrottleBackoff < 0 || c.ErrorBackoff < 0 {
		return fmt.Errorf("backoff durations cannot be negative")
	}

	return nil
}

// HTTPClient creates an HTTP client. Timeouts are applied per attempt.
func (c *Config) HTTPClient() *http.Client {
	return &http.Client{
		Timeout: c.RequestTimeout,
	}
}
