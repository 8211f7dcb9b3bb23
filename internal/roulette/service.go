// Package roulette serves random catalog items per age bucket.
package roulette

//go:generate mockgen -package mocks -destination mocks/mock_catalog.go github.com/fragezeichen/roulette/internal/roulette Catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/analytics"
	"github.com/fragezeichen/roulette/internal/catalog"
	"github.com/fragezeichen/roulette/internal/model"
	"github.com/fragezeichen/roulette/internal/selector"
)

// ErrNoItem is returned when the requested bucket has nothing to draw.
var ErrNoItem = selector.ErrEmptyBucket

// Catalog is the part of the catalog builder the service needs.
type Catalog interface {
	Catalog() []model.Item
	Len() int
	Item(id int64) (model.Item, bool)
	Buckets(ctx context.Context) (model.Table, error)
	CalculateRuntime(ctx context.Context, id int64) int64
	TriggerRefresh() catalog.RefreshStatus
}

// Drawer draws ids from a bucket.
type Drawer interface {
	Draw(ctx context.Context, name model.BucketName) (int64, error)
}

// Counter records draws and reports the totals.
type Counter interface {
	Record(ctx context.Context, bucket model.BucketName, id int64)
	Snapshot() *model.Counters
}

// Compile-time interface compliance checks.
var (
	_ Catalog = (*catalog.Builder)(nil)
	_ Drawer  = (*selector.Selector)(nil)
	_ Counter = (*analytics.Tracker)(nil)
)

// Service is the entry point of the HTTP layer into the catalog.
type Service struct {
	log      logrus.FieldLogger
	catalog  Catalog
	drawer   Drawer
	counter  Counter
	minItems int
}

// NewService creates the service. A catalog smaller than minItems triggers a
// background refresh on the next pick.
func NewService(
	log logrus.FieldLogger,
	cat Catalog,
	drawer Drawer,
	counter Counter,
	minItems int,
) *Service {
	return &Service{
		log:      log.WithField("component", "roulette"),
		catalog:  cat,
		drawer:   drawer,
		counter:  counter,
		minItems: minItems,
	}
}

// Pick draws one item from the bucket and attaches its runtime when known.
func (s *Service) Pick(ctx context.Context, bucket model.BucketName) (model.Item, error) {
	if n := s.catalog.Len(); n < s.minItems {
		status := s.catalog.TriggerRefresh()
		s.log.WithFields(logrus.Fields{
			"items":  n,
			"status": status,
		}).Info("Catalog below minimum size, refresh requested")
	}

	id, err := s.drawer.Draw(ctx, bucket)
	if err != nil {
		return model.Item{}, err
	}

	item, ok := s.catalog.Item(id)
	if !ok {
		// Membership and catalog briefly disagree while a new catalog lands.
		return model.Item{}, fmt.Errorf("%w: item %d not in catalog", ErrNoItem, id)
	}

	if ms := s.catalog.CalculateRuntime(ctx, id); ms > 0 {
		item.DurationMillis = &ms
	}

	s.counter.Record(ctx, bucket, id)

	return item, nil
}

// Items returns the full catalog in catalog order.
func (s *Service) Items() []model.Item {
	return s.catalog.Catalog()
}

// Size returns the number of catalog items.
func (s *Service) Size() int {
	return s.catalog.Len()
}

// Buckets returns the bucket table.
func (s *Service) Buckets(ctx context.Context) (model.Table, error) {
	return s.catalog.Buckets(ctx)
}

// Stats returns the usage counters.
func (s *Service) Stats() *model.Counters {
	return s.counter.Snapshot()
}

// Refresh starts a background forced refresh.
func (s *Service) Refresh() catalog.RefreshStatus {
	status := s.catalog.TriggerRefresh()
	s.log.WithField("status", status).Info("Catalog refresh requested")

	return status
}

// IsNoItem reports whether err means nothing could be drawn.
func IsNoItem(err error) bool {
	return errors.Is(err, ErrNoItem)
}
