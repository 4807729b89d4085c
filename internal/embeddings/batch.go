package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JS12540/evaluating-embedding-models/internal/infra"
)

// DefaultBatchSize is the number of texts sent per embedding request.
const DefaultBatchSize = 32

// EmbedAll embeds texts in batches of min(batchSize, p.MaxBatchSize()) and
// returns one vector per text in input order. Every batch must return exactly
// one vector per input and every vector must share the same dimension.
func EmbedAll(ctx context.Context, p Provider, texts []string, batchSize int, logger *slog.Logger) ([][]float32, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if max := p.MaxBatchSize(); max > 0 && batchSize > max {
		batchSize = max
	}

	batches := infra.BatchItems(texts, batchSize)
	vectors := make([][]float32, 0, len(texts))
	dimension := 0
	for _, batch := range batches {
		out, err := p.EmbedBatch(ctx, batch.Items)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", batch.Index+1, len(batches), err)
		}
		if len(out) != len(batch.Items) {
			return nil, fmt.Errorf("embed batch %d/%d: got %d vectors for %d texts", batch.Index+1, len(batches), len(out), len(batch.Items))
		}
		for i, v := range out {
			if len(v) == 0 {
				return nil, fmt.Errorf("embed batch %d/%d: empty vector for text %d", batch.Index+1, len(batches), batch.Offset+i)
			}
			if dimension == 0 {
				dimension = len(v)
			}
			if len(v) != dimension {
				return nil, fmt.Errorf("%w: text %d has %d dimensions, want %d", ErrDimensionMismatch, batch.Offset+i, len(v), dimension)
			}
		}
		vectors = append(vectors, out...)
		logger.Debug("embedded batch",
			"provider", p.Name(),
			"batch", batch.Index+1,
			"batches", len(batches),
			"done", len(vectors),
			"total", len(texts),
		)
	}
	return vectors, nil
}
