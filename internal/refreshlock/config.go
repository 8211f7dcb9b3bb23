package refreshlock

import (
	"fmt"
	"time"
)

// Config holds the refresh lease configuration.
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	Key           string        `yaml:"key"`
	TTL           time.Duration `yaml:"ttl"`
	RenewInterval time.Duration `yaml:"renew_interval"`
}

// Validate fills defaults and checks the lease timings.
func (c *Config) Validate() error {
	if c.Key == "" {
		c.Key = "refresh-lock"
	}

	if c.TTL == 0 {
		c.TTL = 2 * time.Minute
	}

	if c.RenewInterval == 0 {
		c.RenewInterval = c.TTL / 3
	}

	if c.TTL < time.Second {
		return fmt.Errorf("ttl must be at least 1s, got %s", c.TTL)
	}

	if c.RenewInterval >= c.TTL {
		return fmt.Errorf("renew_interval (%s) must be shorter than ttl (%s)", c.RenewInterval, c.TTL)
	}

	return nil
}
