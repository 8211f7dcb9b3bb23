package analytics

import (
	"fmt"
	"time"
)

// Config holds usage counter settings.
type Config struct {
	FlushEvery    int           `yaml:"flush_every"`    // persist after this many draws
	FlushInterval time.Duration `yaml:"flush_interval"` // and at least this often when dirty
}

// Validate validates and sets defaults for Config.
func (c *Config) Validate() error {
	if c.FlushEvery == 0 {
		c.FlushEvery = 50
	}

	if c.FlushInterval == 0 {
		c.FlushInterval = time.Minute
	}

	if c.FlushEvery < 1 {
		return fmt.Errorf("flush_every must be positive, got %d", c.FlushEvery)
	}

	if c.FlushInterval < time.Second {
		return fmt.Errorf("flush_interval must be at least 1 second, got %v", c.FlushInterval)
	}

	return nil
}
