package catalog

import (
	"cmp"
	"math/big"
	"regexp"
	"slices"
	"strings"

	"github.com/fragezeichen/roulette/internal/model"
)

var digitRun = regexp.MustCompile(`\d+`)

// nameKey splits a lowercased name around its first run of digits.
type nameKey struct {
	prefix string
	number *big.Int
	suffix string
}

func newNameKey(name string) nameKey {
	lower := strings.ToLower(name)

	loc := digitRun.FindStringIndex(lower)
	if loc == nil {
		return nameKey{prefix: lower, number: new(big.Int)}
	}

	n, _ := new(big.Int).SetString(lower[loc[0]:loc[1]], 10)

	return nameKey{
		prefix: lower[:loc[0]],
		number: n,
		suffix: lower[loc[1]:],
	}
}

func (k nameKey) compare(o nameKey) int {
	if c := cmp.Compare(k.prefix, o.prefix); c != 0 {
		return c
	}

	if c := k.number.Cmp(o.number); c != 0 {
		return c
	}

	return cmp.Compare(k.suffix, o.suffix)
}

// SortByName orders items so "Folge 2" precedes "Folge 10". Items with equal
// keys keep their input order. The input slice is not modified.
func SortByName(items []model.Item) []model.Item {
	type keyed struct {
		item model.Item
		key  nameKey
	}

	entries := make([]keyed, len(items))
	for i, item := range items {
		entries[i] = keyed{item: item, key: newNameKey(item.Name)}
	}

	slices.SortStableFunc(entries, func(a, b keyed) int {
		return a.key.compare(b.key)
	})

	sorted := make([]model.Item, len(entries))
	for i, e := range entries {
		sorted[i] = e.item
	}

	return sorted
}
