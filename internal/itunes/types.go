package itunes

//go:generate mockgen -package mocks -destination mocks/mock_source.go github.com/fragezeichen/roulette/internal/itunes Source

import "context"

const (
	WrapperCollection = "collection"
	WrapperTrack      = "track"
	CollectionAlbum   = "Album"
)

// Response is the top-level JSON structure of /search and /lookup.
// Only the fields we use are parsed.
type Response struct {
	ResultCount int      `json:"resultCount"`
	Results     []Record `json:"results"`
}

// Record is a single search or lookup result. Collections and tracks share
// the same shape; fields irrelevant to the wrapper type are zero.
type Record struct {
	WrapperType       string   `json:"wrapperType"`
	CollectionType    string   `json:"collectionType"`
	ArtistName        string   `json:"artistName"`
	CollectionID      int64    `json:"collectionId"`
	CollectionName    string   `json:"collectionName"`
	ArtworkURL100     string   `json:"artworkUrl100"`
	ReleaseDate       string   `json:"releaseDate"`
	CollectionViewURL string   `json:"collectionViewUrl"`
	TrackCount        int      `json:"trackCount"`
	CollectionPrice   *float64 `json:"collectionPrice"`
	TrackTimeMillis   int64    `json:"trackTimeMillis"`
}

// Source is the remote catalog source.
// Both calls retry internally and report exhaustion as ok == false; they
// never return an error.
type Source interface {
	Search(ctx context.Context, term string) (*Response, bool)
	Lookup(ctx context.Context, collectionID int64) (*Response, bool)
}
