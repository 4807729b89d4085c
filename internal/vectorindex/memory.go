package vectorindex

import (
	"context"
	"sync"
)

// Memory is an in-process Index.
type Memory struct {
	mu         sync.RWMutex
	configured int
	dimension  int
	ids        []string
	vectors    [][]float32
	byID       map[string]struct{}
	meta       Meta
}

var _ Index = (*Memory)(nil)

// NewMemory creates an empty in-memory index. A dimension of 0 is fixed by the first Add.
func NewMemory(dimension int) *Memory {
	return &Memory{
		configured: dimension,
		dimension:  dimension,
		byID:       make(map[string]struct{}),
	}
}

// Add appends entries.
func (m *Memory) Add(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := CheckEntries(m.dimension, entries)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, ok := m.byID[e.ChunkID]; ok {
			return errDuplicate(e.ChunkID)
		}
	}
	for _, e := range entries {
		vector := make([]float32, len(e.Vector))
		copy(vector, e.Vector)
		m.ids = append(m.ids, e.ChunkID)
		m.vectors = append(m.vectors, vector)
		m.byID[e.ChunkID] = struct{}{}
	}
	m.dimension = dim
	return nil
}

// Search returns the k nearest entries.
func (m *Memory) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := CheckQuery(m.dimension, query); err != nil {
		return nil, err
	}
	return TopK(query, m.ids, m.vectors, k), nil
}

// Count returns the number of entries.
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids), nil
}

// Dimension returns the vector size.
func (m *Memory) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

// ChunkIDs returns ids in insertion order.
func (m *Memory) ChunkIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, len(m.ids))
	copy(ids, m.ids)
	return ids, nil
}

// SetMeta records build metadata.
func (m *Memory) SetMeta(_ context.Context, meta Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
	return nil
}

// Meta returns build metadata.
func (m *Memory) Meta(context.Context) (Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta, nil
}

// Reset clears the index.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = nil
	m.vectors = nil
	m.byID = make(map[string]struct{})
	m.meta = Meta{}
	m.dimension = m.configured
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
