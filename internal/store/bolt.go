package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var _ Backend = (*BoltBackend)(nil)

// currentKey is the single key held in each record's bolt bucket.
var currentKey = []byte("current")

// BoltBackend persists each record in its own bolt bucket of a single file.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, rec := range Records {
			if _, err := tx.CreateBucketIfNotExists([]byte(rec)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Name() string {
	return "bolt"
}

func (b *BoltBackend) Read(_ context.Context, rec Record) ([]byte, error) {
	var data []byte

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(rec))
		if bucket == nil {
			return nil
		}

		if v := bucket.Get(currentKey); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, ErrNotFound
	}

	return data, nil
}

// Write replaces all given records in one bolt transaction.
func (b *BoltBackend) Write(_ context.Context, records map[Record][]byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for rec, data := range records {
			bucket, err := tx.CreateBucketIfNotExists([]byte(rec))
			if err != nil {
				return err
			}

			if err := bucket.Put(currentKey, data); err != nil {
				return err
			}
		}

		return nil
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
