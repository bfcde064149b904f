package storage

import (
	"context"
	"sync"

	"github.com/ccollicutt/bindlog/pkg/parser"
)

// MemoryStore keeps records in memory. It backs dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	records []parser.QueryRecord
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Store appends rec.
func (m *MemoryStore) Store(_ context.Context, rec parser.QueryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of the stored records.
func (m *MemoryStore) Records() []parser.QueryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]parser.QueryRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
