package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragezeichen/roulette/internal/refreshlock"
)

func validServer() ServerConfig {
	return ServerConfig{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

func validRedis() RedisConfig {
	return RedisConfig{
		Address:     "localhost:6379",
		DialTimeout: 5 * time.Second,
		PoolSize:    10,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config",
			config: &Config{
				Server: validServer(),
			},
			expectError: false,
		},
		{
			name: "invalid port negative",
			config: &Config{
				Server: ServerConfig{
					Host: "localhost",
					Port: -1,
				},
			},
			expectError: true,
			errorMsg:    "invalid server port",
		},
		{
			name: "invalid port too high",
			config: &Config{
				Server: ServerConfig{
					Host: "localhost",
					Port: 99999,
				},
			},
			expectError: true,
			errorMsg:    "invalid server port",
		},
		{
			name: "missing host",
			config: &Config{
				Server: ServerConfig{
					Host: "",
					Port: 8080,
				},
			},
			expectError: true,
			errorMsg:    "server host cannot be empty",
		},
		{
			name: "invalid log level",
			config: &Config{
				Server: func() ServerConfig {
					s := validServer()
					s.LogLevel = "invalid"

					return s
				}(),
			},
			expectError: true,
			errorMsg:    "invalid log level",
		},
		{
			name: "zero read timeout",
			config: &Config{
				Server: ServerConfig{
					Host:         "localhost",
					Port:         8080,
					ReadTimeout:  0,
					WriteTimeout: time.Second,
				},
			},
			expectError: true,
			errorMsg:    "read_timeout must be positive",
		},
		{
			name: "unknown store backend",
			config: &Config{
				Server: validServer(),
				Store:  StoreConfig{Backend: "sqlite"},
			},
			expectError: true,
			errorMsg:    "store: unknown backend",
		},
		{
			name: "redis store without address",
			config: &Config{
				Server: validServer(),
				Store:  StoreConfig{Backend: StoreBackendRedis},
			},
			expectError: true,
			errorMsg:    "redis.address is required",
		},
		{
			name: "redis store",
			config: &Config{
				Server: validServer(),
				Store:  StoreConfig{Backend: StoreBackendRedis},
				Redis:  validRedis(),
			},
			expectError: false,
		},
		{
			name: "refresh lock needs redis",
			config: &Config{
				Server:      validServer(),
				RefreshLock: refreshlock.Config{Enabled: true},
			},
			expectError: true,
			errorMsg:    "redis.address is required",
		},
		{
			name: "refresh lock renew not shorter than ttl",
			config: &Config{
				Server: validServer(),
				Redis:  validRedis(),
				RefreshLock: refreshlock.Config{
					Enabled:       true,
					TTL:           10 * time.Second,
					RenewInterval: 10 * time.Second,
				},
			},
			expectError: true,
			errorMsg:    "refresh_lock: renew_interval",
		},
		{
			name: "redis pool size zero",
			config: &Config{
				Server: validServer(),
				Store:  StoreConfig{Backend: StoreBackendRedis},
				Redis: RedisConfig{
					Address:     "localhost:6379",
					DialTimeout: time.Second,
				},
			},
			expectError: true,
			errorMsg:    "redis.pool_size must be positive",
		},
		{
			name: "rate limiting bad failure mode",
			config: &Config{
				Server: validServer(),
				Redis:  validRedis(),
				RateLimiting: RateLimitingConfig{
					Enabled:     true,
					FailureMode: "maybe",
				},
			},
			expectError: true,
			errorMsg:    "failure_mode must be",
		},
		{
			name: "rate limiting bad regex",
			config: &Config{
				Server: validServer(),
				Redis:  validRedis(),
				RateLimiting: RateLimitingConfig{
					Enabled:     true,
					FailureMode: "fail_open",
					Rules: []RateLimitRule{
						{Name: "random", PathPattern: "([", Limit: 10, Window: time.Minute},
					},
				},
			},
			expectError: true,
			errorMsg:    "invalid regex",
		},
		{
			name: "rate limiting bad exempt ip",
			config: &Config{
				Server: validServer(),
				Redis:  validRedis(),
				RateLimiting: RateLimitingConfig{
					Enabled:     true,
					FailureMode: "fail_closed",
					ExemptIPs:   []string{"not-an-ip"},
					Rules: []RateLimitRule{
						{Name: "random", PathPattern: "^/api/v1/random", Limit: 10, Window: time.Minute},
					},
				},
			},
			expectError: true,
			errorMsg:    "exempt_ips[0]",
		},
		{
			name: "header policy bad regex",
			config: &Config{
				Server:  validServer(),
				Headers: []HeaderPolicy{{Name: "broken", PathPattern: "[unclosed"}},
			},
			expectError: true,
			errorMsg:    "headers[0].path_pattern invalid regex",
		},
		{
			name: "catalog term format without number",
			config: func() *Config {
				c := &Config{Server: validServer()}
				c.Catalog.TermFormat = "Die drei ???"

				return c
			}(),
			expectError: true,
			errorMsg:    "catalog:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				require.Error(t, err)

				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateDefaults(t *testing.T) {
	cfg := &Config{Server: validServer()}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StoreBackendBolt, cfg.Store.Backend)
	assert.Equal(t, "data/roulette.db", cfg.Store.Path)
	assert.False(t, cfg.NeedsRedis())
	assert.Equal(t, "Die drei ???", cfg.Catalog.Artist)
	assert.Equal(t, 4, cfg.Catalog.MinItems)
	assert.Equal(t, 50, cfg.Analytics.FlushEvery)
	assert.Equal(t, "refresh-lock", cfg.RefreshLock.Key)
	assert.Equal(t, "DE", cfg.Source.Country)
	assert.Equal(t, DefaultHeaderPolicies(), cfg.Headers)

	withRedis := &Config{
		Server: validServer(),
		Store:  StoreConfig{Backend: StoreBackendRedis},
		Redis:  validRedis(),
	}
	require.NoError(t, withRedis.Validate())
	assert.Equal(t, "roulette:", withRedis.Redis.KeyPrefix)
	assert.Equal(t, "roulette:", withRedis.Redis.Client().KeyPrefix)
	assert.Equal(t, "localhost:6379", withRedis.Redis.Client().Address)
}

func TestConfig_Load(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid YAML file",
			yamlContent: `
server:
  host: localhost
  port: 8080
  read_timeout: 1s
  write_timeout: 1s
  shutdown_timeout: 5s
  log_level: info
store:
  backend: redis
redis:
  address: localhost:6379
  key_prefix: "roulette:"
  dial_timeout: 5s
  pool_size: 10
refresh_lock:
  enabled: true
  ttl: 90s
source:
  country: DE
  search_limit: 50
catalog:
  default_ceiling: 230
  concurrency: 2
  search_pause: 500ms
analytics:
  flush_every: 10
`,
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Server.Host)
				assert.Equal(t, "info", cfg.Server.LogLevel)
				assert.Equal(t, StoreBackendRedis, cfg.Store.Backend)
				assert.True(t, cfg.RefreshLock.Enabled)
				assert.Equal(t, 90*time.Second, cfg.RefreshLock.TTL)
				assert.Equal(t, 50, cfg.Source.SearchLimit)
				assert.Equal(t, 230, cfg.Catalog.DefaultCeiling)
				assert.Equal(t, 500*time.Millisecond, cfg.Catalog.SearchPause)
				assert.Equal(t, 10, cfg.Analytics.FlushEvery)
				assert.True(t, cfg.NeedsRedis())
				require.NoError(t, cfg.Validate())
			},
		},
		{
			name:        "invalid YAML syntax",
			yamlContent: "invalid: yaml: content:",
			expectError: true,
			errorMsg:    "failed to parse config",
		},
		{
			name:        "empty file",
			yamlContent: "",
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()

				// Empty file loads but config won't validate
				assert.NotNil(t, cfg)
				assert.Error(t, cfg.Validate())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create temp file
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			err := os.WriteFile(configPath, []byte(tt.yamlContent), 0600)
			require.NoError(t, err)

			// Load config
			cfg, err := Load(configPath)

			if tt.expectError {
				require.Error(t, err)

				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}

				return
			}

			require.NoError(t, err)

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestConfig_Load_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
