package testutil

import (
	"fmt"

	"github.com/fragezeichen/roulette/internal/model"
)

// NewTestItems returns n catalog items "Folge 1".."Folge n" with ids 1000+i,
// released one year apart starting in 1979.
func NewTestItems(n int) []model.Item {
	items := make([]model.Item, 0, n)

	for i := 1; i <= n; i++ {
		items = append(items, model.Item{
			ID:          int64(1000 + i),
			Name:        fmt.Sprintf("Folge %d: Die drei ??? Testfall %d", i, i),
			ArtworkURL:  fmt.Sprintf("https://artwork.example/%d/1000x1000bb.jpg", i),
			ReleaseDate: fmt.Sprintf("%04d-10-12T07:00:00Z", 1978+i),
			ExternalURL: fmt.Sprintf("https://music.example/album/%d", 1000+i),
			Year:        1978 + i,
		})
	}

	return items
}
