package store

import (
	"context"
	"errors"

	"github.com/fragezeichen/roulette/internal/redis"
)

var _ Backend = (*RedisBackend)(nil)

// RedisBackend stores each record under its own namespaced key.
type RedisBackend struct {
	client redis.Client
}

// NewRedisBackend wraps a started Redis client.
func NewRedisBackend(client redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Name() string {
	return "redis"
}

func (r *RedisBackend) Read(ctx context.Context, rec Record) ([]byte, error) {
	val, err := r.client.Get(ctx, r.client.Key(string(rec)))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return []byte(val), nil
}

// Write sets every record inside one MULTI/EXEC transaction.
func (r *RedisBackend) Write(ctx context.Context, records map[Record][]byte) error {
	values := make(map[string]string, len(records))
	for rec, data := range records {
		values[r.client.Key(string(rec))] = string(data)
	}

	return r.client.SetAll(ctx, values)
}

// Close is a no-op; the client's lifecycle belongs to its owner.
func (r *RedisBackend) Close() error {
	return nil
}
