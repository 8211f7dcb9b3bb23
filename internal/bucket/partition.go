// Package bucket splits a catalog into chronological age tiers.
package bucket

import (
	"fmt"
	"slices"

	"github.com/fragezeichen/roulette/internal/model"
)

// unknownReleaseKey sorts after every real release date.
const unknownReleaseKey = "9999-12-31T23:59:59Z"

// Partition computes the bucket table for items.
// "all" keeps the input order; old/medium/new are contiguous thirds of the
// chronologically sorted items, larger thirds first.
func Partition(items []model.Item) model.Table {
	table := model.NewTable()

	all := make([]int64, 0, len(items))
	for _, item := range items {
		all = append(all, item.ID)
	}

	table[model.BucketAll] = all

	n := len(items)
	if n == 0 {
		return table
	}

	chronological := slices.Clone(items)
	slices.SortStableFunc(chronological, func(a, b model.Item) int {
		ka, kb := ReleaseKey(a), ReleaseKey(b)

		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	})

	base, remainder := n/3, n%3

	oldEnd := base
	if remainder > 0 {
		oldEnd++
	}

	mediumEnd := oldEnd + base
	if remainder > 1 {
		mediumEnd++
	}

	table[model.BucketOld] = ids(chronological[:oldEnd])
	table[model.BucketMedium] = ids(chronological[oldEnd:mediumEnd])
	table[model.BucketNew] = ids(chronological[mediumEnd:])

	return table
}

// ReleaseKey is the chronological sort key of an item: the release date when
// known, the end of the release year otherwise, and a far-future timestamp
// when neither is known.
func ReleaseKey(item model.Item) string {
	if item.ReleaseDate != "" {
		return item.ReleaseDate
	}

	if item.Year > 0 {
		return fmt.Sprintf("%04d-12-31T23:59:59Z", item.Year)
	}

	return unknownReleaseKey
}

func ids(items []model.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}

	return out
}
