// Package selector draws items from a bucket without repeating any item
// until the whole bucket has been drawn.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/model"
)

// ErrEmptyBucket is returned when the requested bucket has no members.
var ErrEmptyBucket = errors.New("no item available")

// Membership supplies the current bucket table.
type Membership interface {
	Buckets(ctx context.Context) (model.Table, error)
}

// bag is the draw state of one bucket. bag is always a permutation of a
// subset of source.
type bag struct {
	source []int64
	bag    []int64
}

// Selector hands out ids per bucket from a shuffled bag, refilling the bag
// when it runs empty or when the bucket's membership changes.
type Selector struct {
	log        logrus.FieldLogger
	membership Membership

	mu   sync.Mutex
	rng  *rand.Rand
	bags map[model.BucketName]*bag
}

// New creates a selector seeded from the runtime's random source.
func New(log logrus.FieldLogger, membership Membership) *Selector {
	return NewWithRand(log, membership, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))) //nolint:gosec // not security sensitive.
}

// NewWithRand creates a selector drawing from rng.
func NewWithRand(log logrus.FieldLogger, membership Membership, rng *rand.Rand) *Selector {
	return &Selector{
		log:        log.WithField("component", "selector"),
		membership: membership,
		rng:        rng,
		bags:       make(map[model.BucketName]*bag, len(model.BucketNames)),
	}
}

// Draw returns the next id of the bucket.
func (s *Selector) Draw(ctx context.Context, name model.BucketName) (int64, error) {
	table, err := s.membership.Buckets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load buckets: %w", err)
	}

	members := table[name]

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(members) == 0 {
		delete(s.bags, name)

		return 0, ErrEmptyBucket
	}

	state, ok := s.bags[name]
	if !ok || !slices.Equal(state.source, members) {
		if ok {
			s.log.WithField("bucket", name).Debug("Bucket membership changed, reshuffling")
		}

		state = &bag{source: slices.Clone(members)}
		s.bags[name] = state
	}

	if len(state.bag) == 0 {
		state.bag = slices.Clone(state.source)
		s.rng.Shuffle(len(state.bag), func(i, j int) {
			state.bag[i], state.bag[j] = state.bag[j], state.bag[i]
		})
	}

	last := len(state.bag) - 1
	id := state.bag[last]
	state.bag = state.bag[:last]

	return id, nil
}

// Remaining reports how many ids are left in the bucket's current bag.
func (s *Selector) Remaining(name model.BucketName) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.bags[name]; ok {
		return len(state.bag)
	}

	return 0
}
