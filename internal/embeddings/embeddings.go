// Package embeddings provides the provider interface shared by every
// embedding backend, a resilient wrapper adding timeouts, retries, rate
// limiting and metrics, and batch helpers.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Provider defines the interface for embedding providers.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts (more efficient).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider name.
	Name() string

	// Dimension returns the embedding dimension.
	Dimension() int

	// MaxBatchSize returns the maximum number of texts per batch.
	MaxBatchSize() int
}

// QueryEmbedder is implemented by providers that embed search queries
// differently from the documents being searched.
type QueryEmbedder interface {
	// EmbedQuery generates an embedding for a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ErrDimensionMismatch is returned when vectors of different sizes are mixed.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbedQuery embeds text as a search query when the provider distinguishes
// queries, and as a plain text otherwise.
func EmbedQuery(ctx context.Context, p Provider, text string) ([]float32, error) {
	if q, ok := p.(QueryEmbedder); ok {
		return q.EmbedQuery(ctx, text)
	}
	return p.Embed(ctx, text)
}

// First returns the single vector expected from a one-text batch.
func First(vectors [][]float32, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}
