package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/model"
)

// snapshot is an immutable view of every record. It is replaced wholesale,
// never mutated after publication.
type snapshot struct {
	items     []model.Item
	index     map[int64]int
	marker    *model.Marker
	buckets   model.Table
	durations map[int64]int64
	counters  *model.Counters
}

func (s *snapshot) clone() *snapshot {
	out := *s

	return &out
}

// Cache is the in-memory copy of the durable records. Reads never block;
// writes are serialized and the snapshot is only swapped once the backend
// accepted the write.
type Cache struct {
	log     logrus.FieldLogger
	backend Backend

	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// New creates an empty cache over backend. Call Load before serving reads.
func New(log logrus.FieldLogger, backend Backend) *Cache {
	c := &Cache{
		log:     log.WithField("component", "store"),
		backend: backend,
	}

	c.current.Store(&snapshot{durations: map[int64]int64{}})

	return c
}

// Backend returns the durable backend.
func (c *Cache) Backend() Backend {
	return c.backend
}

// Load reads every record from the backend. It is Reload under another name
// for startup call sites.
func (c *Cache) Load(ctx context.Context) error {
	return c.Reload(ctx)
}

// Reload re-reads every record and swaps the snapshot. A record that does not
// decode is logged and treated as absent; the other records still load. A
// backend failure leaves the previous snapshot in place.
func (c *Cache) Reload(ctx context.Context) error {
	// Held across read and swap so a concurrent commit is either part of what
	// we read or applied after the swap.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	raw := make(map[Record][]byte, len(Records))

	for _, rec := range Records {
		data, err := c.backend.Read(ctx, rec)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}

			return fmt.Errorf("%w: read %s: %w", ErrPersistence, rec, err)
		}

		raw[rec] = data
	}

	next := &snapshot{durations: map[int64]int64{}}

	if data, ok := raw[RecordCatalog]; ok {
		var items []model.Item
		if c.decode(RecordCatalog, data, &items) {
			next.items = items
			next.index = indexItems(items)
		}
	}

	if data, ok := raw[RecordMarker]; ok {
		var marker model.Marker
		if c.decode(RecordMarker, data, &marker) {
			next.marker = &marker
		}
	}

	if data, ok := raw[RecordBuckets]; ok {
		var table model.Table
		if c.decode(RecordBuckets, data, &table) {
			next.buckets = table
		}
	}

	if data, ok := raw[RecordDurations]; ok {
		var durations map[int64]int64
		if c.decode(RecordDurations, data, &durations) && durations != nil {
			next.durations = durations
		}
	}

	if data, ok := raw[RecordCounters]; ok {
		var counters model.Counters
		if c.decode(RecordCounters, data, &counters) {
			next.counters = &counters
		}
	}

	c.current.Store(next)

	c.log.WithFields(logrus.Fields{
		"backend": c.backend.Name(),
		"items":   len(next.items),
		"marker":  next.marker.String(),
	}).Debug("Loaded cache snapshot")

	return nil
}

func (c *Cache) decode(rec Record, data []byte, dest any) bool {
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.WithError(err).WithField("record", rec).Warn("Ignoring unreadable record")

		return false
	}

	return true
}

// Catalog returns the cached items in catalog order, or nil when none.
func (c *Cache) Catalog() []model.Item {
	return slices.Clone(c.current.Load().items)
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	return len(c.current.Load().items)
}

// Item returns the cached item with the given id.
func (c *Cache) Item(id int64) (model.Item, bool) {
	s := c.current.Load()

	i, ok := s.index[id]
	if !ok {
		return model.Item{}, false
	}

	return s.items[i], true
}

// Marker returns the freshness marker, or nil when none was saved.
func (c *Cache) Marker() *model.Marker {
	m := c.current.Load().marker
	if m == nil {
		return nil
	}

	out := *m

	return &out
}

// SaveCatalog replaces the catalog and the marker in one atomic write.
func (c *Cache) SaveCatalog(ctx context.Context, items []model.Item, marker model.Marker) error {
	itemsData, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode catalog: %w", ErrPersistence, err)
	}

	markerData, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("%w: encode marker: %w", ErrPersistence, err)
	}

	items = slices.Clone(items)

	return c.commit(ctx, map[Record][]byte{
		RecordCatalog: itemsData,
		RecordMarker:  markerData,
	}, func(s *snapshot) {
		s.items = items
		s.index = indexItems(items)
		s.marker = &marker
	})
}

// SaveSnapshot replaces the catalog, the marker and the bucket table in one
// atomic write, so readers never see a table built from another catalog.
func (c *Cache) SaveSnapshot(ctx context.Context, items []model.Item, marker model.Marker, table model.Table) error {
	itemsData, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode catalog: %w", ErrPersistence, err)
	}

	markerData, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("%w: encode marker: %w", ErrPersistence, err)
	}

	tableData, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("%w: encode buckets: %w", ErrPersistence, err)
	}

	items = slices.Clone(items)
	stored := cloneTable(table)

	return c.commit(ctx, map[Record][]byte{
		RecordCatalog: itemsData,
		RecordMarker:  markerData,
		RecordBuckets: tableData,
	}, func(s *snapshot) {
		s.items = items
		s.index = indexItems(items)
		s.marker = &marker
		s.buckets = stored
	})
}

// SaveMarker replaces only the marker.
func (c *Cache) SaveMarker(ctx context.Context, marker model.Marker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("%w: encode marker: %w", ErrPersistence, err)
	}

	return c.commit(ctx, map[Record][]byte{RecordMarker: data}, func(s *snapshot) {
		s.marker = &marker
	})
}

// Buckets returns the bucket table, or nil when none was saved.
func (c *Cache) Buckets() model.Table {
	return cloneTable(c.current.Load().buckets)
}

// SaveBuckets replaces the bucket table.
func (c *Cache) SaveBuckets(ctx context.Context, table model.Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("%w: encode buckets: %w", ErrPersistence, err)
	}

	stored := cloneTable(table)

	return c.commit(ctx, map[Record][]byte{RecordBuckets: data}, func(s *snapshot) {
		s.buckets = stored
	})
}

// Duration returns the cached runtime of an item in milliseconds.
func (c *Cache) Duration(id int64) (int64, bool) {
	ms, ok := c.current.Load().durations[id]

	return ms, ok
}

// SetDuration caches a runtime. Non-positive values are never stored.
func (c *Cache) SetDuration(ctx context.Context, id, millis int64) error {
	if millis <= 0 {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	durations := maps.Clone(c.current.Load().durations)
	if durations == nil {
		durations = make(map[int64]int64, 1)
	}

	durations[id] = millis

	data, err := json.Marshal(durations)
	if err != nil {
		return fmt.Errorf("%w: encode durations: %w", ErrPersistence, err)
	}

	return c.commitLocked(ctx, map[Record][]byte{RecordDurations: data}, func(s *snapshot) {
		s.durations = durations
	})
}

// Counters returns a copy of the persisted usage counters, or nil when none.
func (c *Cache) Counters() *model.Counters {
	counters := c.current.Load().counters
	if counters == nil {
		return nil
	}

	return counters.Clone()
}

// SaveCounters replaces the usage counters.
func (c *Cache) SaveCounters(ctx context.Context, counters *model.Counters) error {
	stored := counters.Clone()

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("%w: encode counters: %w", ErrPersistence, err)
	}

	return c.commit(ctx, map[Record][]byte{RecordCounters: data}, func(s *snapshot) {
		s.counters = stored
	})
}

func (c *Cache) commit(ctx context.Context, records map[Record][]byte, apply func(*snapshot)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.commitLocked(ctx, records, apply)
}

func (c *Cache) commitLocked(ctx context.Context, records map[Record][]byte, apply func(*snapshot)) error {
	if err := c.backend.Write(ctx, records); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, recordNames(records), err)
	}

	next := c.current.Load().clone()
	apply(next)
	c.current.Store(next)

	return nil
}

func cloneTable(t model.Table) model.Table {
	if t == nil {
		return nil
	}

	out := make(model.Table, len(t))
	for name, ids := range t {
		out[name] = slices.Clone(ids)
	}

	return out
}

func indexItems(items []model.Item) map[int64]int {
	index := make(map[int64]int, len(items))
	for i, item := range items {
		index[item.ID] = i
	}

	return index
}

func recordNames(records map[Record][]byte) []Record {
	names := slices.Collect(maps.Keys(records))
	slices.Sort(names)

	return names
}
