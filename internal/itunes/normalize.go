package itunes

import (
	"strconv"
	"strings"

	"github.com/fragezeichen/roulette/internal/model"
)

// Normalize converts a collection record into a catalog item.
// Records whose collection and artist names match none of patterns
// (case-insensitive substring) are rejected.
func Normalize(rec Record, patterns []string) (model.Item, bool) {
	if !Admitted(rec, patterns) {
		return model.Item{}, false
	}

	artwork := rec.ArtworkURL100
	if artwork != "" {
		artwork = strings.Replace(artwork, "100x100", "1000x1000", 1)
	}

	year := 0
	if len(rec.ReleaseDate) >= 4 {
		if parsed, err := strconv.Atoi(rec.ReleaseDate[:4]); err == nil {
			year = parsed
		}
	}

	return model.Item{
		ID:          rec.CollectionID,
		Name:        rec.CollectionName,
		ArtworkURL:  artwork,
		ReleaseDate: rec.ReleaseDate,
		ExternalURL: rec.CollectionViewURL,
		Year:        year,
	}, true
}

// Admitted applies the inclusion allow-list to a record.
func Admitted(rec Record, patterns []string) bool {
	collection := strings.ToLower(rec.CollectionName)
	artist := strings.ToLower(rec.ArtistName)

	for _, pattern := range patterns {
		p := strings.ToLower(pattern)
		if p == "" {
			continue
		}

		if strings.Contains(collection, p) || strings.Contains(artist, p) {
			return true
		}
	}

	return false
}
