package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler builds the catalog on startup and re-checks its freshness on a
// fixed interval, so a new day triggers a refresh without any request.
type Scheduler struct {
	log      logrus.FieldLogger
	builder  *Builder
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler ticking every interval.
func NewScheduler(log logrus.FieldLogger, builder *Builder, interval time.Duration) *Scheduler {
	return &Scheduler{
		log:      log.WithField("component", "catalog_scheduler"),
		builder:  builder,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop. It does not wait for the first build.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.WithField("interval", s.interval).Info("Starting catalog scheduler")

	s.wg.Add(1)

	go s.refreshLoop(ctx)

	return nil
}

// Stop ends the loop and waits for an in-flight check to return. It is safe
// to call more than once.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.log.Info("Stopping catalog scheduler")
		close(s.done)
	})
	s.wg.Wait()

	return nil
}

func (s *Scheduler) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	// Startup build; the cached catalog keeps serving if it fails.
	s.check(ctx, false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.check(ctx, true)
		}
	}
}

func (s *Scheduler) check(ctx context.Context, reload bool) {
	if reload {
		if err := s.builder.Reload(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to reload cache")
		}
	}

	items, err := s.builder.BuildCatalog(ctx, false)

	switch {
	case errors.Is(err, ErrRefreshInProgress):
		s.log.Debug("Refresh already running, skipping check")
	case err != nil:
		s.log.WithError(err).Error("Catalog check failed")
	default:
		s.log.WithField("items", len(items)).Debug("Catalog check finished")
	}
}
