//nolint:tagliatelle // superior snake-case yo.
package model

import (
	"fmt"
	"strings"
	"time"
)

// BucketName identifies an age tier of the catalog.
type BucketName string

const (
	BucketOld    BucketName = "old"
	BucketMedium BucketName = "medium"
	BucketNew    BucketName = "new"
	BucketAll    BucketName = "all"
)

// BucketNames lists every bucket in display order.
var BucketNames = []BucketName{BucketOld, BucketMedium, BucketNew, BucketAll}

// ParseBucketName normalizes a user supplied bucket name.
// Unknown or empty values fall back to BucketAll.
func ParseBucketName(s string) BucketName {
	name := BucketName(strings.ToLower(strings.TrimSpace(s)))

	for _, known := range BucketNames {
		if name == known {
			return name
		}
	}

	return BucketAll
}

// Item is a single catalog entry (one numbered episode).
type Item struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ArtworkURL     string `json:"artwork_url"`
	ReleaseDate    string `json:"release_date"`
	ExternalURL    string `json:"external_url"`
	Year           int    `json:"year"`
	DurationMillis *int64 `json:"duration_millis,omitempty"`
}

// Marker records when, and under which schema version, the catalog was built.
type Marker struct {
	BuiltOn       string `json:"built_on"` // YYYY-MM-DD
	HighWaterMark int    `json:"high_water_mark"`
	SchemaVersion int    `json:"schema_version"`
}

// DateLayout is the layout of Marker.BuiltOn.
const DateLayout = "2006-01-02"

// Today formats t as a Marker date.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}

// IsFresh reports whether the marker was built on today under version.
func (m *Marker) IsFresh(today string, version int) bool {
	if m == nil {
		return false
	}

	return m.BuiltOn == today && m.SchemaVersion == version
}

func (m *Marker) String() string {
	if m == nil {
		return "<none>"
	}

	return fmt.Sprintf("%s/v%d/hwm=%d", m.BuiltOn, m.SchemaVersion, m.HighWaterMark)
}

// Table maps every bucket name to its ordered item ids.
type Table map[BucketName][]int64

// NewTable returns a table with all bucket keys present and empty.
func NewTable() Table {
	t := make(Table, len(BucketNames))
	for _, name := range BucketNames {
		t[name] = []int64{}
	}

	return t
}

// Complete reports whether every bucket key is present.
func (t Table) Complete() bool {
	for _, name := range BucketNames {
		if _, ok := t[name]; !ok {
			return false
		}
	}

	return true
}

// Counters are the persisted usage statistics.
type Counters struct {
	TotalDraws    int64                `json:"total_draws"`
	DrawsByBucket map[BucketName]int64 `json:"draws_by_bucket"`
	DrawsByItem   map[int64]int64      `json:"draws_by_item"`
}

// NewCounters returns zeroed counters with every bucket present.
func NewCounters() *Counters {
	c := &Counters{
		DrawsByBucket: make(map[BucketName]int64, len(BucketNames)),
		DrawsByItem:   make(map[int64]int64),
	}

	for _, name := range BucketNames {
		c.DrawsByBucket[name] = 0
	}

	return c
}

// Clone returns a deep copy.
func (c *Counters) Clone() *Counters {
	out := &Counters{
		TotalDraws:    c.TotalDraws,
		DrawsByBucket: make(map[BucketName]int64, len(c.DrawsByBucket)),
		DrawsByItem:   make(map[int64]int64, len(c.DrawsByItem)),
	}

	for k, v := range c.DrawsByBucket {
		out.DrawsByBucket[k] = v
	}

	for k, v := range c.DrawsByItem {
		out.DrawsByItem[k] = v
	}

	return out
}
