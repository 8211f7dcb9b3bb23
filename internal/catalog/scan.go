package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/fragezeichen/roulette/internal/itunes"
	"github.com/fragezeichen/roulette/internal/model"
)

type episodeHit struct {
	number int
	item   model.Item
	ok     bool
}

// scanRange searches episodes from..to (inclusive) through a bounded pool.
// Episodes that fail or match nothing are simply absent from the result.
func (b *Builder) scanRange(ctx context.Context, from, to int) map[int]model.Item {
	found := make(map[int]model.Item)
	if to < from {
		return found
	}

	p := pool.NewWithResults[episodeHit]().WithMaxGoroutines(b.cfg.Concurrency)

	for n := from; n <= to; n++ {
		p.Go(func() episodeHit {
			return b.fetchEpisode(ctx, n)
		})
	}

	for _, hit := range p.Wait() {
		if hit.ok {
			found[hit.number] = hit.item
		}
	}

	b.log.WithFields(logrus.Fields{
		"from":  from,
		"to":    to,
		"found": len(found),
	}).Debug("Scanned episode range")

	return found
}

func (b *Builder) fetchEpisode(ctx context.Context, number int) episodeHit {
	miss := episodeHit{number: number}

	if err := b.pacer.Wait(ctx); err != nil {
		return miss
	}

	resp, ok := b.source.Search(ctx, fmt.Sprintf(b.cfg.TermFormat, number))
	if !ok || resp == nil {
		return miss
	}

	rec, ok := b.pickCandidate(resp.Results, number)
	if !ok {
		return miss
	}

	item, ok := itunes.Normalize(rec, b.cfg.NamePatterns)
	if !ok {
		return miss
	}

	return episodeHit{number: number, item: item, ok: true}
}

// pickCandidate keeps album collections by the configured artist whose name
// carries "<token> <number>" as a whole word, then prefers the most tracks
// and, among equals, a priced collection.
func (b *Builder) pickCandidate(results []itunes.Record, number int) (itunes.Record, bool) {
	pattern := regexp.MustCompile(
		`(?i)` + regexp.QuoteMeta(b.cfg.EpisodeToken) + `\s+` + strconv.Itoa(number) + `\b`,
	)

	var (
		best  itunes.Record
		found bool
	)

	for _, rec := range results {
		if rec.WrapperType != itunes.WrapperCollection ||
			rec.CollectionType != itunes.CollectionAlbum ||
			rec.ArtistName != b.cfg.Artist ||
			!pattern.MatchString(rec.CollectionName) {
			continue
		}

		if !found || better(rec, best) {
			best = rec
			found = true
		}
	}

	return best, found
}

func better(a, b itunes.Record) bool {
	if a.TrackCount != b.TrackCount {
		return a.TrackCount > b.TrackCount
	}

	return a.CollectionPrice != nil && b.CollectionPrice == nil
}
