//nolint:tagliatelle // superior snake-case yo.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fragezeichen/roulette/internal/analytics"
	"github.com/fragezeichen/roulette/internal/catalog"
	"github.com/fragezeichen/roulette/internal/itunes"
	"github.com/fragezeichen/roulette/internal/redis"
	"github.com/fragezeichen/roulette/internal/refreshlock"
)

// Store backends.
const (
	StoreBackendBolt   = "bolt"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

// Config represents the complete application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Redis        RedisConfig        `yaml:"redis"`
	RefreshLock  refreshlock.Config `yaml:"refresh_lock"`
	Source       itunes.Config      `yaml:"source"`
	Catalog      catalog.Config     `yaml:"catalog"`
	Analytics    analytics.Config   `yaml:"analytics"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	Headers      []HeaderPolicy     `yaml:"headers"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// StoreConfig selects where the catalog cache is persisted.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "bolt", "redis" or "memory"
	Path    string `yaml:"path"`    // bolt database file
}

// RedisConfig holds Redis client configuration.
type RedisConfig struct {
	Address      string        `yaml:"address"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// RateLimitingConfig holds rate limiting configuration.
type RateLimitingConfig struct {
	Enabled     bool            `yaml:"enabled"`
	FailureMode string          `yaml:"failure_mode"` // "fail_open" or "fail_closed"
	ExemptIPs   []string        `yaml:"exempt_ips"`   // CIDR ranges to whitelist
	Rules       []RateLimitRule `yaml:"rules"`
}

// RateLimitRule defines a single rate limit rule.
type RateLimitRule struct {
	Name        string        `yaml:"name"`
	PathPattern string        `yaml:"path_pattern"` // Regex pattern
	Limit       int           `yaml:"limit"`        // Max requests
	Window      time.Duration `yaml:"window"`       // Time window
}

// HeaderPolicy sets response headers on requests whose path matches.
type HeaderPolicy struct {
	Name        string            `yaml:"name"`
	PathPattern string            `yaml:"path_pattern"` // Regex pattern
	Headers     map[string]string `yaml:"headers"`
}

// DefaultHeaderPolicies lets clients cache the catalog views briefly and
// keeps the rest of the API uncached.
func DefaultHeaderPolicies() []HeaderPolicy {
	return []HeaderPolicy{
		{
			Name:        "catalog",
			PathPattern: `^/api/v1/(catalog|buckets)$`,
			Headers: map[string]string{
				"Cache-Control":               "public, max-age=300",
				"Access-Control-Allow-Origin": "*",
			},
		},
		{
			Name:        "api",
			PathPattern: `^/api/`,
			Headers: map[string]string{
				"Cache-Control":               "no-cache",
				"Access-Control-Allow-Origin": "*",
			},
		},
	}
}

// Client converts the section into the Redis client configuration.
func (c RedisConfig) Client() redis.Config {
	return redis.Config{
		Address:      c.Address,
		Password:     c.Password,
		DB:           c.DB,
		KeyPrefix:    c.KeyPrefix,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Store.Backend == StoreBackendRedis || c.RefreshLock.Enabled || c.RateLimiting.Enabled
}

// Validate validates the configuration and sets defaults.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	// Redis only matters when something uses it
	if c.NeedsRedis() {
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	}

	if err := c.RefreshLock.Validate(); err != nil {
		return fmt.Errorf("refresh_lock: %w", err)
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	if err := c.Analytics.Validate(); err != nil {
		return fmt.Errorf("analytics: %w", err)
	}

	// Validate rate limiting config
	if c.RateLimiting.Enabled {
		if err := c.validateRateLimiting(); err != nil {
			return fmt.Errorf("rate_limiting: %w", err)
		}
	}

	if c.Headers == nil {
		c.Headers = DefaultHeaderPolicies()
	}

	for i, p := range c.Headers {
		if p.Name == "" {
			return fmt.Errorf("headers[%d].name is required", i)
		}

		if _, err := regexp.Compile(p.PathPattern); err != nil {
			return fmt.Errorf("headers[%d].path_pattern invalid regex: %w", i, err)
		}
	}

	return nil
}

// Validate validates and sets defaults for StoreConfig.
func (c *StoreConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = StoreBackendBolt
	}

	switch c.Backend {
	case StoreBackendBolt:
		if c.Path == "" {
			c.Path = "data/roulette.db"
		}
	case StoreBackendRedis, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	return nil
}

// Validate validates and sets defaults for RedisConfig.
func (c *RedisConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("redis.address is required")
	}

	if c.KeyPrefix == "" {
		c.KeyPrefix = "roulette:"
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("redis.dial_timeout must be positive")
	}

	if c.PoolSize <= 0 {
		return fmt.Errorf("redis.pool_size must be positive")
	}

	return nil
}

func (c *Config) validateRateLimiting() error {
	if c.RateLimiting.FailureMode != "fail_open" && c.RateLimiting.FailureMode != "fail_closed" {
		return fmt.Errorf("failure_mode must be 'fail_open' or 'fail_closed'")
	}

	if len(c.RateLimiting.Rules) == 0 {
		return fmt.Errorf("rules must have at least one rule")
	}

	for i, rule := range c.RateLimiting.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rules[%d].name is required", i)
		}

		if rule.PathPattern == "" {
			return fmt.Errorf("rules[%d].path_pattern is required", i)
		}

		if rule.Limit <= 0 {
			return fmt.Errorf("rules[%d].limit must be positive", i)
		}

		if rule.Window <= 0 {
			return fmt.Errorf("rules[%d].window must be positive", i)
		}

		// Validate regex pattern compiles
		if _, err := regexp.Compile(rule.PathPattern); err != nil {
			return fmt.Errorf("rules[%d].path_pattern invalid regex: %w", i, err)
		}
	}

	// Validate CIDR ranges
	for i, cidr := range c.RateLimiting.ExemptIPs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			// Try parsing as single IP
			if net.ParseIP(cidr) == nil {
				return fmt.Errorf("exempt_ips[%d] invalid IP or CIDR: %s", i, cidr)
			}
		}
	}

	return nil
}
