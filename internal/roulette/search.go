package roulette

import (
	"cmp"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/model"
)

// Search returns the catalog items whose name fuzzily contains query, best
// match first. Ties keep catalog order. An empty query returns the catalog.
func (s *Service) Search(query string) []model.Item {
	items := s.catalog.Catalog()

	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}

	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(query, names)

	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}

		return cmp.Compare(a.OriginalIndex, b.OriginalIndex)
	})

	out := make([]model.Item, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, items[r.OriginalIndex])
	}

	s.log.WithFields(logrus.Fields{
		"query":   query,
		"matches": len(out),
	}).Debug("Catalog search")

	return out
}
