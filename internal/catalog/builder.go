package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fragezeichen/roulette/internal/bucket"
	"github.com/fragezeichen/roulette/internal/itunes"
	"github.com/fragezeichen/roulette/internal/model"
	"github.com/fragezeichen/roulette/internal/refreshlock"
	"github.com/fragezeichen/roulette/internal/store"
)

var (
	// ErrSourceUnavailable means the scan found nothing and no cached catalog
	// exists to fall back to.
	ErrSourceUnavailable = errors.New("catalog source unavailable")
	// ErrRefreshInProgress means another refresh holds the guard.
	ErrRefreshInProgress = errors.New("catalog refresh already in progress")
	// ErrPersistence means the durable store rejected a read or write.
	ErrPersistence = store.ErrPersistence
)

// RefreshStatus is the outcome of TriggerRefresh.
type RefreshStatus string

const (
	RefreshStarted        RefreshStatus = "started"
	RefreshAlreadyRunning RefreshStatus = "already_running"
)

// Builder owns the catalog lifecycle: freshness checks, discovery scans,
// bucket tables and runtimes.
type Builder struct {
	log    logrus.FieldLogger
	cfg    Config
	source itunes.Source
	cache  *store.Cache
	locker refreshlock.Locker
	pacer  *rate.Limiter
	now    func() time.Time

	// running is held for the whole of any refresh.
	running sync.Mutex

	bgCtx    context.Context //nolint:containedctx // detached parent for background refreshes.
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// NewBuilder creates a catalog builder. locker may be nil, in which case
// refreshes are only exclusive within this process.
func NewBuilder(
	log logrus.FieldLogger,
	cfg Config,
	source itunes.Source,
	cache *store.Cache,
	locker refreshlock.Locker,
) *Builder {
	bgCtx, bgCancel := context.WithCancel(context.Background())

	return &Builder{
		log:      log.WithField("component", "catalog"),
		cfg:      cfg,
		source:   source,
		cache:    cache,
		locker:   locker,
		pacer:    newPacer(cfg.SearchPause),
		now:      time.Now,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
}

// Stop aborts background refreshes and waits for them to return. A refresh
// aborted this way commits nothing.
func (b *Builder) Stop() {
	b.bgCancel()
	b.bg.Wait()
}

// Wait blocks until no background refresh is running.
func (b *Builder) Wait() {
	b.bg.Wait()
}

// Catalog returns the committed catalog.
func (b *Builder) Catalog() []model.Item {
	return b.cache.Catalog()
}

// Len returns the size of the committed catalog.
func (b *Builder) Len() int {
	return b.cache.Len()
}

// Item returns one catalog item by id.
func (b *Builder) Item(id int64) (model.Item, bool) {
	return b.cache.Item(id)
}

// Marker returns the current freshness marker.
func (b *Builder) Marker() *model.Marker {
	return b.cache.Marker()
}

// Reload re-reads the durable store, picking up catalogs written by other
// instances.
func (b *Builder) Reload(ctx context.Context) error {
	return b.cache.Reload(ctx)
}

// BuildCatalog returns the catalog, refreshing it from the source when the
// cache is stale or force is set.
func (b *Builder) BuildCatalog(ctx context.Context, force bool) ([]model.Item, error) {
	if !force {
		if items, ok, err := b.fromFreshCache(ctx); ok {
			return items, err
		}
	}

	if !b.running.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer b.running.Unlock()

	return b.build(ctx, force)
}

// TriggerRefresh starts a forced refresh in the background. The refresh is
// detached from any request and runs until it completes or Stop is called.
func (b *Builder) TriggerRefresh() RefreshStatus {
	if !b.running.TryLock() {
		return RefreshAlreadyRunning
	}

	b.bg.Add(1)

	go func() {
		defer b.bg.Done()
		defer b.running.Unlock()

		items, err := b.build(b.bgCtx, true)
		if err != nil {
			if errors.Is(err, ErrRefreshInProgress) {
				b.log.Info("Background refresh skipped, another instance is refreshing")

				return
			}

			b.log.WithError(err).Error("Background refresh failed")

			return
		}

		b.log.WithField("items", len(items)).Info("Background refresh finished")
	}()

	return RefreshStarted
}

// Refreshing reports whether a refresh currently holds the guard.
func (b *Builder) Refreshing() bool {
	if b.running.TryLock() {
		b.running.Unlock()

		return false
	}

	return true
}

// fromFreshCache serves a valid cached catalog. ok is false when a refresh
// is needed.
func (b *Builder) fromFreshCache(ctx context.Context) ([]model.Item, bool, error) {
	today := model.Today(b.now())
	cached := b.cache.Catalog()

	if len(cached) == 0 || !b.cache.Marker().IsFresh(today, b.cfg.SchemaVersion) {
		return nil, false, nil
	}

	if err := b.saveBuckets(ctx, cached); err != nil {
		return nil, true, err
	}

	refreshesTotal.WithLabelValues("fresh").Inc()
	catalogItems.Set(float64(len(cached)))

	return cached, true, nil
}

// build runs with the running guard held.
func (b *Builder) build(ctx context.Context, force bool) ([]model.Item, error) {
	var lease *refreshlock.Lease

	if b.locker != nil {
		held, err := b.locker.TryLock(ctx)

		switch {
		case errors.Is(err, refreshlock.ErrLocked):
			refreshesTotal.WithLabelValues("skipped").Inc()

			return nil, ErrRefreshInProgress
		case err != nil:
			b.log.WithError(err).Warn("Refresh lease unavailable, refreshing without it")
		default:
			lease = held
			defer lease.Release()

			// Another instance may have committed while we waited.
			if err := b.cache.Reload(ctx); err != nil {
				return nil, err
			}
		}
	}

	if !force {
		if items, ok, err := b.fromFreshCache(ctx); ok {
			return items, err
		}
	}

	return b.refresh(ctx, lease)
}

// refresh scans the source and commits the result. lease is nil when no
// cross-process lock is in use.
func (b *Builder) refresh(ctx context.Context, lease *refreshlock.Lease) ([]model.Item, error) {
	started := time.Now()
	defer func() {
		refreshDuration.Observe(time.Since(started).Seconds())
	}()

	today := model.Today(b.now())
	marker := b.cache.Marker()
	cached := b.cache.Catalog()

	ceiling := b.cfg.DefaultCeiling
	if marker != nil {
		ceiling = max(ceiling, marker.HighWaterMark)
	}

	log := b.log.WithFields(logrus.Fields{
		"ceiling": ceiling,
		"marker":  marker.String(),
		"cached":  len(cached),
	})
	log.Info("Refreshing catalog")

	found, highest := b.discover(ctx, ceiling)

	if err := ctx.Err(); err != nil {
		refreshesTotal.WithLabelValues("aborted").Inc()

		return nil, fmt.Errorf("refresh aborted: %w", err)
	}

	if len(found) == 0 {
		if len(cached) == 0 {
			refreshesTotal.WithLabelValues("unavailable").Inc()
			log.Warn("Scan found nothing and no cached catalog exists")

			return nil, ErrSourceUnavailable
		}

		next := model.Marker{BuiltOn: today, HighWaterMark: ceiling, SchemaVersion: b.cfg.SchemaVersion}
		if err := b.commit(ctx, lease, cached, next); err != nil {
			return nil, err
		}

		refreshesTotal.WithLabelValues("fallback").Inc()
		catalogItems.Set(float64(len(cached)))
		log.Warn("Scan found nothing, keeping cached catalog")

		return cached, nil
	}

	items := SortByName(assemble(found))
	next := model.Marker{BuiltOn: today, HighWaterMark: highest, SchemaVersion: b.cfg.SchemaVersion}

	if err := b.commit(ctx, lease, items, next); err != nil {
		return nil, err
	}

	refreshesTotal.WithLabelValues("refreshed").Inc()
	catalogItems.Set(float64(len(items)))

	log.WithFields(logrus.Fields{
		"items":           len(items),
		"high_water_mark": highest,
		"took":            time.Since(started).Round(time.Millisecond),
	}).Info("Catalog refreshed")

	return items, nil
}

// commit writes catalog, marker and bucket table together. Nothing is written
// once the lease has been lost, since another instance may be refreshing.
func (b *Builder) commit(ctx context.Context, lease *refreshlock.Lease, items []model.Item, marker model.Marker) error {
	if lease != nil && !lease.Confirm(ctx) {
		refreshesTotal.WithLabelValues("lease_lost").Inc()
		b.log.Warn("Refresh lease lost during scan, discarding result")

		return ErrRefreshInProgress
	}

	if err := b.cache.SaveSnapshot(ctx, items, marker, bucket.Partition(items)); err != nil {
		refreshesTotal.WithLabelValues("failed").Inc()

		return err
	}

	return nil
}

// discover scans 1..ceiling, then windows past the ceiling until too many
// consecutive windows come back empty.
func (b *Builder) discover(ctx context.Context, ceiling int) (map[int]model.Item, int) {
	found := b.scanRange(ctx, 1, ceiling)
	highest := maxNumber(found)

	limit := ceiling + b.cfg.MaxExtension
	empty := 0

	for start := ceiling + 1; start <= limit && empty < b.cfg.MaxEmptyWindows; {
		if ctx.Err() != nil {
			break
		}

		end := min(start+b.cfg.ScanStep-1, limit)
		extra := b.scanRange(ctx, start, end)
		start = end + 1

		if len(extra) == 0 {
			empty++

			continue
		}

		maps.Copy(found, extra)
		highest = max(highest, maxNumber(extra))
		empty = 0
	}

	return found, highest
}

// assemble orders discovered items by episode number and drops repeated
// collections, keeping the lowest number.
func assemble(found map[int]model.Item) []model.Item {
	numbers := slices.Sorted(maps.Keys(found))
	seen := make(map[int64]struct{}, len(found))
	items := make([]model.Item, 0, len(found))

	for _, n := range numbers {
		item := found[n]
		if _, dup := seen[item.ID]; dup {
			continue
		}

		seen[item.ID] = struct{}{}
		items = append(items, item)
	}

	return items
}

func maxNumber(found map[int]model.Item) int {
	highest := 0
	for n := range found {
		highest = max(highest, n)
	}

	return highest
}

// Buckets returns the bucket table, rebuilding it when the stored one is
// missing keys or its "all" bucket differs from the catalog.
func (b *Builder) Buckets(ctx context.Context) (model.Table, error) {
	table := b.cache.Buckets()
	items := b.cache.Catalog()

	if table.Complete() && matchesCatalog(table, items) {
		return table, nil
	}

	table = bucket.Partition(items)

	if err := b.cache.SaveBuckets(ctx, table); err != nil {
		b.log.WithError(err).Warn("Failed to persist rebuilt bucket table")
	}

	return table, nil
}

func (b *Builder) saveBuckets(ctx context.Context, items []model.Item) error {
	return b.cache.SaveBuckets(ctx, bucket.Partition(items))
}

// matchesCatalog reports whether the table's "all" bucket lists exactly the
// catalog ids in catalog order.
func matchesCatalog(table model.Table, items []model.Item) bool {
	all := table[model.BucketAll]
	if len(all) != len(items) {
		return false
	}

	for i, item := range items {
		if all[i] != item.ID {
			return false
		}
	}

	return true
}
