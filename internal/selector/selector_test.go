package selector

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragezeichen/roulette/internal/model"
	"github.com/fragezeichen/roulette/internal/testutil"
)

type staticMembership struct {
	mu    sync.Mutex
	table model.Table
	err   error
}

func (m *staticMembership) Buckets(context.Context) (model.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.table, m.err
}

func (m *staticMembership) set(name model.BucketName, ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.table[name] = ids
}

func newTestSelector(membership Membership) *Selector {
	return NewWithRand(testutil.NewTestLogger(), membership, rand.New(rand.NewPCG(1, 2)))
}

func TestDraw_PermutationPerCycle(t *testing.T) {
	tests := []struct {
		name string
		ids  []int64
	}{
		{name: "single item", ids: []int64{7}},
		{name: "three items", ids: []int64{1, 2, 3}},
		{name: "many items", ids: []int64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			membership := &staticMembership{table: model.NewTable()}
			membership.set(model.BucketOld, tt.ids...)

			s := newTestSelector(membership)
			ctx := testutil.NewTestContext(t)

			for cycle := 0; cycle < 3; cycle++ {
				drawn := make([]int64, 0, len(tt.ids))

				for range tt.ids {
					id, err := s.Draw(ctx, model.BucketOld)
					require.NoError(t, err)

					drawn = append(drawn, id)
				}

				assert.ElementsMatch(t, tt.ids, drawn, "cycle %d is a permutation", cycle)
				assert.Equal(t, 0, s.Remaining(model.BucketOld))
			}
		})
	}
}

func TestDraw_MembershipChangeResetsBag(t *testing.T) {
	membership := &staticMembership{table: model.NewTable()}
	membership.set(model.BucketNew, 1, 2, 3, 4)

	s := newTestSelector(membership)
	ctx := testutil.NewTestContext(t)

	_, err := s.Draw(ctx, model.BucketNew)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Remaining(model.BucketNew))

	membership.set(model.BucketNew, 5, 6)

	drawn := make([]int64, 0, 2)

	for range 2 {
		id, err := s.Draw(ctx, model.BucketNew)
		require.NoError(t, err)

		drawn = append(drawn, id)
	}

	assert.ElementsMatch(t, []int64{5, 6}, drawn)
}

func TestDraw_BucketsAreIndependent(t *testing.T) {
	membership := &staticMembership{table: model.NewTable()}
	membership.set(model.BucketOld, 1, 2)
	membership.set(model.BucketAll, 1, 2, 3)

	s := newTestSelector(membership)
	ctx := testutil.NewTestContext(t)

	id, err := s.Draw(ctx, model.BucketOld)
	require.NoError(t, err)
	assert.Contains(t, []int64{1, 2}, id)

	assert.Equal(t, 1, s.Remaining(model.BucketOld))
	assert.Equal(t, 0, s.Remaining(model.BucketAll))

	_, err = s.Draw(ctx, model.BucketAll)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Remaining(model.BucketOld))
	assert.Equal(t, 2, s.Remaining(model.BucketAll))
}

func TestDraw_EmptyBucket(t *testing.T) {
	membership := &staticMembership{table: model.NewTable()}
	s := newTestSelector(membership)

	_, err := s.Draw(testutil.NewTestContext(t), model.BucketMedium)
	assert.ErrorIs(t, err, ErrEmptyBucket)
}

func TestDraw_MembershipError(t *testing.T) {
	membership := &staticMembership{err: assert.AnError}
	s := newTestSelector(membership)

	_, err := s.Draw(testutil.NewTestContext(t), model.BucketAll)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, ErrEmptyBucket)
}

func TestDraw_Concurrent(t *testing.T) {
	ids := make([]int64, 50)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	membership := &staticMembership{table: model.NewTable()}
	membership.set(model.BucketAll, ids...)

	s := New(testutil.NewTestLogger(), membership)
	ctx := testutil.NewTestContext(t)

	var (
		mu    sync.Mutex
		drawn []int64
		wg    sync.WaitGroup
	)

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 10 {
				id, err := s.Draw(ctx, model.BucketAll)
				if err != nil {
					t.Error(err)

					return
				}

				mu.Lock()
				drawn = append(drawn, id)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	slices.Sort(drawn)
	assert.Equal(t, ids, drawn, "50 concurrent draws exhaust one bag without repeats")
}
