package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Config holds catalog discovery and freshness settings.
type Config struct {
	Artist          string        `yaml:"artist"`            // exact artistName a candidate must carry
	EpisodeToken    string        `yaml:"episode_token"`     // word preceding the episode number
	TermFormat      string        `yaml:"term_format"`       // search term, %d is the episode number
	NamePatterns    []string      `yaml:"name_patterns"`     // inclusion allow-list
	DefaultCeiling  int           `yaml:"default_ceiling"`   // lowest high-water mark scanned
	ScanStep        int           `yaml:"scan_step"`         // window size past the ceiling
	MaxEmptyWindows int           `yaml:"max_empty_windows"` // consecutive empty windows before stopping
	MaxExtension    int           `yaml:"max_extension"`     // how far past the ceiling to look
	Concurrency     int           `yaml:"concurrency"`       // parallel searches
	SearchPause     time.Duration `yaml:"search_pause"`      // minimum delay between dispatches
	SchemaVersion   int           `yaml:"schema_version"`    // bump to invalidate stored catalogs
	MinItems        int           `yaml:"min_items"`         // below this a pick triggers a refresh
	CheckInterval   time.Duration `yaml:"check_interval"`    // scheduler tick
}

// Validate validates and sets defaults for Config.
func (c *Config) Validate() error {
	if c.Artist == "" {
		c.Artist = "Die drei ???"
	}

	if c.EpisodeToken == "" {
		c.EpisodeToken = "Folge"
	}

	if c.TermFormat == "" {
		c.TermFormat = "Folge %d Die drei ???"
	}

	if len(c.NamePatterns) == 0 {
		c.NamePatterns = []string{"die drei ???", "die drei fragezeichen"}
	}

	if c.DefaultCeiling == 0 {
		c.DefaultCeiling = 240
	}

	if c.ScanStep == 0 {
		c.ScanStep = 10
	}

	if c.MaxEmptyWindows == 0 {
		c.MaxEmptyWindows = 3
	}

	if c.MaxExtension == 0 {
		c.MaxExtension = 60
	}

	if c.Concurrency == 0 {
		c.Concurrency = 1
	}

	if c.SearchPause == 0 {
		c.SearchPause = 250 * time.Millisecond
	}

	if c.SchemaVersion == 0 {
		c.SchemaVersion = 4
	}

	if c.MinItems == 0 {
		c.MinItems = 4
	}

	if c.CheckInterval == 0 {
		c.CheckInterval = time.Hour
	}

	if strings.Count(c.TermFormat, "%d") != 1 {
		return fmt.Errorf("term_format must contain exactly one %%d, got %q", c.TermFormat)
	}

	if c.DefaultCeiling < 1 {
		return fmt.Errorf("default_ceiling must be positive, got %d", c.DefaultCeiling)
	}

	if c.ScanStep < 1 || c.MaxEmptyWindows < 1 || c.MaxExtension < 0 {
		return fmt.Errorf(
			"invalid scan window: step=%d empty_windows=%d extension=%d",
			c.ScanStep, c.MaxEmptyWindows, c.MaxExtension,
		)
	}

	if c.Concurrency < 1 || c.Concurrency > 16 {
		return fmt.Errorf("concurrency must be between 1 and 16, got %d", c.Concurrency)
	}

	if c.SearchPause < 0 {
		return fmt.Errorf("search_pause must not be negative, got %v", c.SearchPause)
	}

	if c.CheckInterval < time.Minute {
		return fmt.Errorf("check_interval must be at least 1 minute, got %v", c.CheckInterval)
	}

	return nil
}
