package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/time/rate"

	"github.com/fragezeichen/roulette/internal/itunes"
	"github.com/fragezeichen/roulette/internal/itunes/mocks"
	"github.com/fragezeichen/roulette/internal/refreshlock"
	"github.com/fragezeichen/roulette/internal/store"
	"github.com/fragezeichen/roulette/internal/testutil"
)

var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

const (
	testToday     = "2026-10-19"
	testYesterday = "2026-10-18"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := Config{
		DefaultCeiling:  5,
		ScanStep:        2,
		MaxEmptyWindows: 2,
		MaxExtension:    10,
	}
	require.NoError(t, cfg.Validate())

	return cfg
}

type testEnv struct {
	builder *Builder
	source  *mocks.MockSource
	cache   *store.Cache
	backend store.Backend
}

func newTestEnv(t *testing.T, cfg Config, backend store.Backend, locker refreshlock.Locker) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)

	if backend == nil {
		backend = store.NewMemoryBackend()
	}

	cache := store.New(testutil.NewTestLogger(), backend)
	require.NoError(t, cache.Load(testutil.NewTestContext(t)))

	b := NewBuilder(testutil.NewTestLogger(), cfg, source, cache, locker)
	b.now = func() time.Time { return testNow }
	b.pacer = rate.NewLimiter(rate.Inf, 1)

	t.Cleanup(b.Stop)

	return &testEnv{
		builder: b,
		source:  source,
		cache:   cache,
		backend: backend,
	}
}

func episodeRecord(n int) itunes.Record {
	return itunes.Record{
		WrapperType:       itunes.WrapperCollection,
		CollectionType:    itunes.CollectionAlbum,
		ArtistName:        "Die drei ???",
		CollectionID:      int64(1000 + n),
		CollectionName:    fmt.Sprintf("Folge %d: Testfall %d", n, n),
		ArtworkURL100:     fmt.Sprintf("https://artwork.example/%d/100x100bb.jpg", n),
		ReleaseDate:       fmt.Sprintf("%04d-03-01T08:00:00Z", 1978+n),
		CollectionViewURL: fmt.Sprintf("https://music.example/album/%d", 1000+n),
		TrackCount:        12,
	}
}

// fakeUpstream answers searches for the given episode numbers and records
// every number searched.
type fakeUpstream struct {
	mu       sync.Mutex
	episodes map[int]itunes.Record
	searched []int
}

func newFakeUpstream(numbers ...int) *fakeUpstream {
	f := &fakeUpstream{episodes: make(map[int]itunes.Record, len(numbers))}
	for _, n := range numbers {
		f.episodes[n] = episodeRecord(n)
	}

	return f
}

func (f *fakeUpstream) search(_ context.Context, term string) (*itunes.Response, bool) {
	var n int
	if _, err := fmt.Sscanf(term, "Folge %d", &n); err != nil {
		return nil, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.searched = append(f.searched, n)

	rec, ok := f.episodes[n]
	if !ok {
		return &itunes.Response{}, true
	}

	return &itunes.Response{ResultCount: 1, Results: []itunes.Record{rec}}, true
}

func (f *fakeUpstream) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.searched)
}

func (f *fakeUpstream) maxSearched() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	highest := 0
	for _, n := range f.searched {
		highest = max(highest, n)
	}

	return highest
}

// failingBackend fails writes once armed. With only set, just the writes
// that touch that record fail.
type failingBackend struct {
	store.Backend
	mu   sync.Mutex
	fail bool
	only store.Record
}

func (f *failingBackend) arm() {
	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()
}

func (f *failingBackend) Write(ctx context.Context, records map[store.Record][]byte) error {
	f.mu.Lock()
	fail := f.fail
	only := f.only
	f.mu.Unlock()

	if fail {
		if _, touched := records[only]; only == "" || touched {
			return errors.New("disk full")
		}
	}

	return f.Backend.Write(ctx, records)
}
