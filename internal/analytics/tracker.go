// Package analytics counts draws per bucket and per item and persists the
// counters periodically.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/model"
)

var drawsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roulette_draws_total",
		Help: "Items drawn by bucket",
	},
	[]string{"bucket"},
)

func init() {
	prometheus.MustRegister(drawsTotal)
}

// Store persists the counters.
type Store interface {
	Counters() *model.Counters
	SaveCounters(ctx context.Context, counters *model.Counters) error
}

// Tracker accumulates draw counters in memory.
type Tracker struct {
	log   logrus.FieldLogger
	cfg   Config
	store Store

	mu       sync.Mutex
	counters *model.Counters
	dirty    bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a tracker with zeroed counters. Start loads the persisted ones.
func New(log logrus.FieldLogger, cfg Config, store Store) *Tracker {
	return &Tracker{
		log:      log.WithField("component", "analytics"),
		cfg:      cfg,
		store:    store,
		counters: model.NewCounters(),
		done:     make(chan struct{}),
	}
}

// Start loads persisted counters and begins the periodic flush.
func (t *Tracker) Start(ctx context.Context) error {
	if persisted := t.store.Counters(); persisted != nil {
		t.mu.Lock()
		t.counters = merge(persisted, t.counters)
		t.mu.Unlock()

		t.log.WithField("total_draws", persisted.TotalDraws).Info("Loaded usage counters")
	}

	t.wg.Add(1)

	go t.flushLoop(ctx)

	return nil
}

// Stop ends the flush loop and writes any pending counts. It is safe to
// call more than once.
func (t *Tracker) Stop() error {
	t.stopOnce.Do(func() {
		t.log.Info("Stopping analytics tracker")
		close(t.done)
	})
	t.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return t.Flush(ctx)
}

// Record counts one draw of id from bucket. Every FlushEvery draws the
// counters are persisted.
func (t *Tracker) Record(ctx context.Context, bucket model.BucketName, id int64) {
	drawsTotal.WithLabelValues(string(bucket)).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters.TotalDraws++
	t.counters.DrawsByBucket[bucket]++
	t.counters.DrawsByItem[id]++
	t.dirty = true

	if t.counters.TotalDraws%int64(t.cfg.FlushEvery) == 0 {
		if err := t.flushLocked(ctx); err != nil {
			t.log.WithError(err).Warn("Failed to persist usage counters")
		}
	}
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() *model.Counters {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.counters.Clone()
}

// Flush persists the counters if anything changed since the last flush.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.flushLocked(ctx)
}

func (t *Tracker) flushLocked(ctx context.Context) error {
	if !t.dirty {
		return nil
	}

	if err := t.store.SaveCounters(ctx, t.counters); err != nil {
		return err
	}

	t.dirty = false

	return nil
}

func (t *Tracker) flushLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				t.log.WithError(err).Warn("Periodic counter flush failed")
			}
		}
	}
}

// merge adds delta onto a copy of base.
func merge(base, delta *model.Counters) *model.Counters {
	out := base.Clone()

	for _, name := range model.BucketNames {
		if _, ok := out.DrawsByBucket[name]; !ok {
			out.DrawsByBucket[name] = 0
		}
	}

	out.TotalDraws += delta.TotalDraws

	for k, v := range delta.DrawsByBucket {
		out.DrawsByBucket[k] += v
	}

	for k, v := range delta.DrawsByItem {
		out.DrawsByItem[k] += v
	}

	return out
}
