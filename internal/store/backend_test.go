package store

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragezeichen/roulette/internal/model"
	"github.com/fragezeichen/roulette/internal/redis"
	"github.com/fragezeichen/roulette/internal/testutil"
)

func newRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(testutil.NewTestLogger(), redis.Config{
		Address:   mr.Addr(),
		KeyPrefix: "roulette:",
	})
	require.NoError(t, client.Start(testutil.NewTestContext(t)))
	t.Cleanup(func() { _ = client.Stop() })

	return NewRedisBackend(client), mr
}

func TestBackends(t *testing.T) {
	tests := []struct {
		name    string
		backend func(t *testing.T) Backend
	}{
		{
			name: "memory",
			backend: func(t *testing.T) Backend {
				t.Helper()

				return NewMemoryBackend()
			},
		},
		{
			name: "bolt",
			backend: func(t *testing.T) Backend {
				t.Helper()

				b, err := OpenBolt(filepath.Join(t.TempDir(), "store", "roulette.db"))
				require.NoError(t, err)
				t.Cleanup(func() { _ = b.Close() })

				return b
			},
		},
		{
			name: "redis",
			backend: func(t *testing.T) Backend {
				t.Helper()

				b, _ := newRedisBackend(t)

				return b
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.NewTestContext(t)
			b := tt.backend(t)

			assert.Equal(t, tt.name, b.Name())

			_, err := b.Read(ctx, RecordCatalog)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Write(ctx, map[Record][]byte{
				RecordCatalog: []byte(`[{"id":1}]`),
				RecordMarker:  []byte(`{"built_on":"2026-10-19"}`),
			}))

			data, err := b.Read(ctx, RecordCatalog)
			require.NoError(t, err)
			assert.JSONEq(t, `[{"id":1}]`, string(data))

			data, err = b.Read(ctx, RecordMarker)
			require.NoError(t, err)
			assert.JSONEq(t, `{"built_on":"2026-10-19"}`, string(data))

			_, err = b.Read(ctx, RecordBuckets)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBoltBackend_SurvivesReopen(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	path := filepath.Join(t.TempDir(), "roulette.db")

	b, err := OpenBolt(path)
	require.NoError(t, err)

	items := testutil.NewTestItems(5)
	marker := model.Marker{BuiltOn: "2026-10-19", HighWaterMark: 5, SchemaVersion: 4}

	c := New(testutil.NewTestLogger(), b)
	require.NoError(t, c.SaveCatalog(ctx, items, marker))
	require.NoError(t, c.SaveBuckets(ctx, model.Table{model.BucketAll: {1001, 1002}}))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	reopened := New(testutil.NewTestLogger(), b)
	require.NoError(t, reopened.Load(ctx))

	assert.Equal(t, items, reopened.Catalog())
	assert.Equal(t, &marker, reopened.Marker())
	assert.Equal(t, []int64{1001, 1002}, reopened.Buckets()[model.BucketAll])
}

func TestRedisBackend_KeyLayout(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	b, mr := newRedisBackend(t)

	c := New(testutil.NewTestLogger(), b)
	require.NoError(t, c.SaveMarker(ctx, model.Marker{BuiltOn: "2026-10-19", SchemaVersion: 4}))
	require.NoError(t, c.SetDuration(ctx, 1001, 2500))

	assert.True(t, mr.Exists("roulette:marker"))
	assert.True(t, mr.Exists("roulette:durations"))
	assert.False(t, mr.Exists("roulette:catalog"))

	raw, err := mr.Get("roulette:durations")
	require.NoError(t, err)
	assert.JSONEq(t, `{"1001":2500}`, raw)
}
