package store

import (
	"context"
	"errors"
)

// Record names one independently persisted concern.
type Record string

const (
	RecordCatalog   Record = "catalog"
	RecordMarker    Record = "marker"
	RecordBuckets   Record = "buckets"
	RecordDurations Record = "durations"
	RecordCounters  Record = "counters"
)

// Records lists every record the cache persists.
var Records = []Record{
	RecordCatalog,
	RecordMarker,
	RecordBuckets,
	RecordDurations,
	RecordCounters,
}

var (
	// ErrNotFound is returned by a Backend when a record was never written.
	ErrNotFound = errors.New("record not found")
	// ErrPersistence wraps every failure to read or write the durable backend.
	ErrPersistence = errors.New("persistence failure")
)

// Backend is the durable half of the cache. Implementations must apply a
// multi-record Write atomically: either every record is replaced or none is.
type Backend interface {
	Name() string
	Read(ctx context.Context, rec Record) ([]byte, error)
	Write(ctx context.Context, records map[Record][]byte) error
	Close() error
}
