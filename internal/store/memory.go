package store

import (
	"context"
	"slices"
	"sync"
)

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend keeps records in process memory. Nothing survives a restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[Record][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[Record][]byte, len(Records))}
}

func (m *MemoryBackend) Name() string {
	return "memory"
}

func (m *MemoryBackend) Read(_ context.Context, rec Record) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[rec]
	if !ok {
		return nil, ErrNotFound
	}

	return slices.Clone(data), nil
}

func (m *MemoryBackend) Write(_ context.Context, records map[Record][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for rec, data := range records {
		m.records[rec] = slices.Clone(data)
	}

	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
