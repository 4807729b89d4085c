// Package vectorindex stores one embedding per chunk and answers exact
// nearest-neighbour queries by squared Euclidean distance.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is a chunk id with its embedding.
type Entry struct {
	ChunkID string
	Vector  []float32
}

// Hit is a search result. Lower distance means more similar.
type Hit struct {
	ChunkID  string  `json:"chunk_id"`
	Distance float64 `json:"distance"`
}

// Meta describes how an index was built.
type Meta struct {
	Backend   string `json:"backend"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Index is an exact vector index keyed by chunk id.
type Index interface {
	// Add appends entries. Chunk ids must be unique within the index.
	Add(ctx context.Context, entries []Entry) error

	// Search returns up to k hits ordered by ascending distance. Ties keep
	// insertion order.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Dimension returns the vector size, or 0 while the index is empty and unconfigured.
	Dimension() int

	// ChunkIDs returns every stored chunk id in insertion order.
	ChunkIDs(ctx context.Context) ([]string, error)

	// SetMeta records how the index was built.
	SetMeta(ctx context.Context, meta Meta) error

	// Meta returns the recorded build metadata.
	Meta(ctx context.Context) (Meta, error)

	// Reset removes every entry and the recorded metadata.
	Reset(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Replacer is implemented by indexes that can swap their whole contents
// atomically. Replace leaves the previous contents in place when it fails.
type Replacer interface {
	Replace(ctx context.Context, entries []Entry, meta Meta) error
}

// Replace swaps idx's contents for entries and meta. Indexes without
// Replacer are reset and refilled.
func Replace(ctx context.Context, idx Index, entries []Entry, meta Meta) error {
	if r, ok := idx.(Replacer); ok {
		return r.Replace(ctx, entries, meta)
	}
	if err := idx.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	if err := idx.Add(ctx, entries); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	if meta.Dimension == 0 {
		meta.Dimension = idx.Dimension()
	}
	if err := idx.SetMeta(ctx, meta); err != nil {
		return fmt.Errorf("record index meta: %w", err)
	}
	return nil
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// CheckEntries validates entries against dim and returns the dimension they
// establish. A dim of 0 adopts the size of the first entry.
func CheckEntries(dim int, entries []Entry) (int, error) {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ChunkID == "" {
			return dim, fmt.Errorf("entry %d has an empty chunk id", i)
		}
		if _, ok := seen[e.ChunkID]; ok {
			return dim, fmt.Errorf("duplicate chunk id %q", e.ChunkID)
		}
		seen[e.ChunkID] = struct{}{}
		if len(e.Vector) == 0 {
			return dim, fmt.Errorf("entry %q has an empty vector", e.ChunkID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return dim, fmt.Errorf("%w: entry %q has %d dimensions, index has %d", ErrDimensionMismatch, e.ChunkID, len(e.Vector), dim)
		}
	}
	return dim, nil
}

// CheckQuery validates a query vector against the index dimension.
func CheckQuery(dim int, query []float32) error {
	if dim != 0 && len(query) != dim {
		return fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), dim)
	}
	return nil
}

// TopK ranks candidates, given in insertion order, by squared L2 distance to
// query and returns the k nearest. Equal distances keep insertion order.
func TopK(query []float32, ids []string, vectors [][]float32, k int) []Hit {
	if k <= 0 || len(ids) == 0 {
		return nil
	}
	hits := make([]Hit, len(ids))
	for i := range ids {
		hits[i] = Hit{ChunkID: ids[i], Distance: SquaredL2(query, vectors[i])}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// HitIDs returns the chunk ids of hits in rank order.
func HitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}

func errDuplicate(id string) error {
	return fmt.Errorf("chunk id %q is already indexed", id)
}
