package catalog

import (
	"context"

	"github.com/fragezeichen/roulette/internal/itunes"
)

// CalculateRuntime returns the summed track length of a collection in
// milliseconds, or 0 when unknown. Only positive totals are cached, so an
// unknown runtime is looked up again next time.
func (b *Builder) CalculateRuntime(ctx context.Context, id int64) int64 {
	if ms, ok := b.cache.Duration(id); ok {
		runtimeLookupsTotal.WithLabelValues("cache").Inc()

		return ms
	}

	resp, ok := b.source.Lookup(ctx, id)
	if !ok || resp == nil {
		runtimeLookupsTotal.WithLabelValues("unavailable").Inc()

		return 0
	}

	var total int64

	for _, rec := range resp.Results {
		if rec.WrapperType == itunes.WrapperTrack {
			total += rec.TrackTimeMillis
		}
	}

	if total <= 0 {
		runtimeLookupsTotal.WithLabelValues("empty").Inc()

		return 0
	}

	runtimeLookupsTotal.WithLabelValues("remote").Inc()

	if err := b.cache.SetDuration(ctx, id, total); err != nil {
		b.log.WithError(err).WithField("id", id).Warn("Failed to cache runtime")
	}

	return total
}
