package backends

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JS12540/evaluating-embedding-models/internal/embeddings"
	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// BuildStats summarizes one index build.
type BuildStats struct {
	Backend   string
	Model     string
	Chunks    int
	Dimension int
	Duration  time.Duration
}

// Build replaces b's index contents with embeddings of every non-empty chunk.
// Embedding happens first, so a failed build leaves the previous index intact.
func Build(ctx context.Context, b *Backend, chunks []models.Chunk, logger *slog.Logger) (BuildStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	chunks = models.NonEmptyChunks(chunks)
	stats := BuildStats{Backend: b.Name(), Model: b.Config.Model, Chunks: len(chunks)}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := embeddings.EmbedAll(ctx, b.Provider, texts, b.Config.BatchSize, logger)
	if err != nil {
		return stats, err
	}

	entries := make([]vectorindex.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorindex.Entry{ChunkID: c.ID(), Vector: vectors[i]}
	}
	if err := vectorindex.Replace(ctx, b.Index, entries, vectorindex.Meta{
		Backend: b.Name(),
		Model:   b.Config.Model,
	}); err != nil {
		return stats, err
	}
	stats.Dimension = b.Index.Dimension()

	stats.Duration = time.Since(start)
	logger.Info("index built",
		"backend", stats.Backend,
		"model", stats.Model,
		"chunks", stats.Chunks,
		"dimension", stats.Dimension,
		"duration", stats.Duration,
	)
	return stats, nil
}

// BuildAll builds every backend concurrently. The first failure cancels the rest.
func BuildAll(ctx context.Context, all []*Backend, chunks []models.Chunk, logger *slog.Logger) ([]BuildStats, error) {
	stats := make([]BuildStats, len(all))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range all {
		g.Go(func() error {
			s, err := Build(gctx, b, chunks, logger)
			if err != nil {
				return fmt.Errorf("backend %s: %w", b.Name(), err)
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// VerifyAll checks that every backend's index holds exactly the given chunk ids.
func VerifyAll(ctx context.Context, all []*Backend, chunkIDs []string) error {
	for _, b := range all {
		if err := vectorindex.Verify(ctx, b.Index, chunkIDs); err != nil {
			return fmt.Errorf("backend %s: %w", b.Name(), err)
		}
	}
	return nil
}
