package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragezeichen/roulette/internal/model"
	"github.com/fragezeichen/roulette/internal/testutil"
)

// failingBackend wraps a backend and fails writes on demand.
type failingBackend struct {
	Backend
	failWrites bool
	failReads  bool
}

func (f *failingBackend) Read(ctx context.Context, rec Record) ([]byte, error) {
	if f.failReads {
		return nil, errors.New("disk on fire")
	}

	return f.Backend.Read(ctx, rec)
}

func (f *failingBackend) Write(ctx context.Context, records map[Record][]byte) error {
	if f.failWrites {
		return errors.New("disk full")
	}

	return f.Backend.Write(ctx, records)
}

// gatedBackend blocks reads of one record until released.
type gatedBackend struct {
	Backend
	gate    Record
	reached chan struct{}
	release chan struct{}
}

func (g *gatedBackend) Read(ctx context.Context, rec Record) ([]byte, error) {
	if rec == g.gate {
		close(g.reached)
		<-g.release
	}

	return g.Backend.Read(ctx, rec)
}

func TestCache_EmptyLoad(t *testing.T) {
	c := New(testutil.NewTestLogger(), NewMemoryBackend())
	require.NoError(t, c.Load(testutil.NewTestContext(t)))

	assert.Nil(t, c.Catalog())
	assert.Nil(t, c.Marker())
	assert.Nil(t, c.Buckets())
	assert.Nil(t, c.Counters())
	assert.Equal(t, 0, c.Len())

	_, ok := c.Duration(1)
	assert.False(t, ok)
}

func TestCache_SaveCatalog(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	backend := NewMemoryBackend()
	c := New(testutil.NewTestLogger(), backend)

	items := testutil.NewTestItems(3)
	marker := model.Marker{BuiltOn: "2026-10-19", HighWaterMark: 3, SchemaVersion: 4}

	require.NoError(t, c.SaveCatalog(ctx, items, marker))

	assert.Equal(t, items, c.Catalog())
	assert.Equal(t, &marker, c.Marker())

	item, ok := c.Item(items[1].ID)
	require.True(t, ok)
	assert.Equal(t, items[1], item)

	_, ok = c.Item(42)
	assert.False(t, ok)

	// A fresh cache over the same backend sees the same records.
	reopened := New(testutil.NewTestLogger(), backend)
	require.NoError(t, reopened.Load(ctx))
	assert.Equal(t, items, reopened.Catalog())
	assert.Equal(t, &marker, reopened.Marker())
}

func TestCache_ReturnsCopies(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	c := New(testutil.NewTestLogger(), NewMemoryBackend())

	items := testutil.NewTestItems(2)
	require.NoError(t, c.SaveCatalog(ctx, items, model.Marker{BuiltOn: "2026-10-19"}))
	require.NoError(t, c.SaveBuckets(ctx, model.Table{model.BucketAll: {1, 2}}))

	items[0].Name = "mutated"
	got := c.Catalog()
	got[1].Name = "mutated too"

	table := c.Buckets()
	table[model.BucketAll][0] = 99

	assert.NotEqual(t, "mutated", c.Catalog()[0].Name)
	assert.NotEqual(t, "mutated too", c.Catalog()[1].Name)
	assert.Equal(t, []int64{1, 2}, c.Buckets()[model.BucketAll])
}

func TestCache_SaveMarkerKeepsCatalog(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	c := New(testutil.NewTestLogger(), NewMemoryBackend())

	items := testutil.NewTestItems(2)
	require.NoError(t, c.SaveCatalog(ctx, items, model.Marker{BuiltOn: "2026-10-18", SchemaVersion: 4}))

	next := model.Marker{BuiltOn: "2026-10-19", HighWaterMark: 240, SchemaVersion: 4}
	require.NoError(t, c.SaveMarker(ctx, next))

	assert.Equal(t, items, c.Catalog())
	assert.Equal(t, &next, c.Marker())
}

func TestCache_Durations(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	backend := NewMemoryBackend()
	c := New(testutil.NewTestLogger(), backend)

	require.NoError(t, c.SetDuration(ctx, 7, 0))
	require.NoError(t, c.SetDuration(ctx, 8, -5))

	_, ok := c.Duration(7)
	assert.False(t, ok, "zero durations are never cached")

	_, ok = c.Duration(8)
	assert.False(t, ok)

	_, err := backend.Read(ctx, RecordDurations)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.SetDuration(ctx, 7, 3_600_000))
	require.NoError(t, c.SetDuration(ctx, 9, 1_000))

	ms, ok := c.Duration(7)
	require.True(t, ok)
	assert.Equal(t, int64(3_600_000), ms)

	reopened := New(testutil.NewTestLogger(), backend)
	require.NoError(t, reopened.Load(ctx))

	ms, ok = reopened.Duration(9)
	require.True(t, ok)
	assert.Equal(t, int64(1_000), ms)
}

func TestCache_Counters(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	c := New(testutil.NewTestLogger(), NewMemoryBackend())

	counters := model.NewCounters()
	counters.TotalDraws = 3
	counters.DrawsByBucket[model.BucketOld] = 3
	counters.DrawsByItem[1001] = 2

	require.NoError(t, c.SaveCounters(ctx, counters))

	counters.TotalDraws = 100

	got := c.Counters()
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.TotalDraws)
	assert.Equal(t, int64(2), got.DrawsByItem[1001])
}

func TestCache_FailedWriteKeepsSnapshot(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	backend := &failingBackend{Backend: NewMemoryBackend()}
	c := New(testutil.NewTestLogger(), backend)

	items := testutil.NewTestItems(2)
	marker := model.Marker{BuiltOn: "2026-10-18", SchemaVersion: 4}
	require.NoError(t, c.SaveCatalog(ctx, items, marker))

	backend.failWrites = true

	err := c.SaveCatalog(ctx, testutil.NewTestItems(5), model.Marker{BuiltOn: "2026-10-19"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	err = c.SetDuration(ctx, items[0].ID, 10)
	assert.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, items, c.Catalog())
	assert.Equal(t, &marker, c.Marker())

	_, ok := c.Duration(items[0].ID)
	assert.False(t, ok)
}

func TestCache_ReloadFailureKeepsSnapshot(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	backend := &failingBackend{Backend: NewMemoryBackend()}
	c := New(testutil.NewTestLogger(), backend)

	items := testutil.NewTestItems(2)
	require.NoError(t, c.SaveCatalog(ctx, items, model.Marker{BuiltOn: "2026-10-19"}))

	backend.failReads = true

	err := c.Reload(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, items, c.Catalog())
}

func TestCache_CorruptRecordIsIsolated(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	backend := NewMemoryBackend()
	c := New(testutil.NewTestLogger(), backend)

	items := testutil.NewTestItems(3)
	marker := model.Marker{BuiltOn: "2026-10-19", HighWaterMark: 3, SchemaVersion: 4}
	require.NoError(t, c.SaveCatalog(ctx, items, marker))
	require.NoError(t, c.SetDuration(ctx, items[0].ID, 1234))

	require.NoError(t, backend.Write(ctx, map[Record][]byte{
		RecordMarker:  []byte("{not json"),
		RecordBuckets: []byte("[]"),
	}))

	reopened := New(testutil.NewTestLogger(), backend)
	require.NoError(t, reopened.Load(ctx))

	assert.Equal(t, items, reopened.Catalog())
	assert.Nil(t, reopened.Marker())
	assert.Nil(t, reopened.Buckets())

	ms, ok := reopened.Duration(items[0].ID)
	require.True(t, ok)
	assert.Equal(t, int64(1234), ms)
}

func TestCache_ReloadPicksUpForeignWrites(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	backend := NewMemoryBackend()

	reader := New(testutil.NewTestLogger(), backend)
	writer := New(testutil.NewTestLogger(), backend)

	require.NoError(t, reader.Load(ctx))
	require.NoError(t, writer.SaveCatalog(ctx, testutil.NewTestItems(4), model.Marker{BuiltOn: "2026-10-19"}))

	assert.Equal(t, 0, reader.Len())
	require.NoError(t, reader.Reload(ctx))
	assert.Equal(t, 4, reader.Len())
}

func TestCache_ReloadKeepsConcurrentWrite(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	inner := NewMemoryBackend()
	c := New(testutil.NewTestLogger(), inner)
	require.NoError(t, c.Load(ctx))

	backend := &gatedBackend{
		Backend: inner,
		gate:    RecordCounters,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
	c.backend = backend

	reloaded := make(chan error, 1)

	go func() { reloaded <- c.Reload(ctx) }()

	// Durations have been read; the reload is parked on the last record.
	<-backend.reached

	written := make(chan error, 1)

	go func() { written <- c.SetDuration(ctx, 1001, 2_700_000) }()

	select {
	case err := <-written:
		t.Fatalf("write committed during reload: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(backend.release)

	require.NoError(t, <-reloaded)
	require.NoError(t, <-written)

	ms, ok := c.Duration(1001)
	require.True(t, ok, "write made during reload survives the swap")
	assert.Equal(t, int64(2_700_000), ms)
}

func TestCache_SaveSnapshot(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	backend := NewMemoryBackend()
	c := New(testutil.NewTestLogger(), backend)

	items := testutil.NewTestItems(3)
	marker := model.Marker{BuiltOn: "2026-10-19", HighWaterMark: 3, SchemaVersion: 4}
	table := model.Table{
		model.BucketAll:    {1001, 1002, 1003},
		model.BucketOld:    {1001},
		model.BucketMedium: {1002},
		model.BucketNew:    {1003},
	}

	require.NoError(t, c.SaveSnapshot(ctx, items, marker, table))

	assert.Equal(t, items, c.Catalog())
	assert.Equal(t, &marker, c.Marker())
	assert.Equal(t, table, c.Buckets())

	reopened := New(testutil.NewTestLogger(), backend)
	require.NoError(t, reopened.Load(ctx))
	assert.Equal(t, items, reopened.Catalog())
	assert.Equal(t, table, reopened.Buckets())

	// A rejected write leaves all three records as they were.
	failing := New(testutil.NewTestLogger(), &failingBackend{Backend: backend, failWrites: true})
	require.NoError(t, failing.Load(ctx))

	err := failing.SaveSnapshot(ctx, testutil.NewTestItems(5), model.Marker{BuiltOn: "2026-10-20"}, model.NewTable())
	require.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, items, failing.Catalog())
	assert.Equal(t, "2026-10-19", failing.Marker().BuiltOn)
	assert.Equal(t, table, failing.Buckets())
}
