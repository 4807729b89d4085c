// Package groundtruth labels which chunks answer each evaluation question by
// asking a language model, and stores and loads the labelled dataset.
package groundtruth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JS12540/evaluating-embedding-models/internal/backoff"
	"github.com/JS12540/evaluating-embedding-models/internal/observability"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	// Timeout bounds each labelling attempt. Default: 5m
	Timeout time.Duration

	// MaxAttempts bounds the labelling calls. Default: 3
	MaxAttempts int

	// Policy controls the delay between attempts.
	Policy backoff.Policy

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Logger  *slog.Logger
}

// Generator produces ground truth records from chunks and questions.
type Generator struct {
	labeler Labeler
	opts    backoff.Options
	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger
}

// Result is the outcome of a labelling run.
type Result struct {
	Records []models.GroundTruthRecord

	// UnknownIDs maps question ids to labelled chunk ids absent from the chunk set.
	UnknownIDs map[string][]string

	Attempts int
}

// NewGenerator creates a generator around labeler.
func NewGenerator(labeler Labeler, opts GeneratorOptions) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Policy == (backoff.Policy{}) {
		opts.Policy = backoff.DefaultPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		labeler: labeler,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		logger:  logger.With("provider", labeler.Name()),
	}
	g.opts = backoff.Options{
		Policy:      opts.Policy,
		MaxAttempts: opts.MaxAttempts,
		Timeout:     opts.Timeout,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			g.logger.Warn("labelling request failed, retrying",
				"attempt", attempt,
				"reason", backoff.Classify(err),
				"delay", delay,
				"error", err,
			)
		},
	}
	return g
}

// Generate labels questions against every non-empty chunk. A reply that fails
// to parse or validate is an error and yields no records.
func (g *Generator) Generate(ctx context.Context, chunks []models.Chunk, questions []models.Question) (*Result, error) {
	chunks = models.NonEmptyChunks(chunks)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to label")
	}
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}

	system, user, err := BuildPrompt(Refs(chunks), questions)
	if err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, "groundtruth.label",
		"provider", g.labeler.Name(),
		"chunks", len(chunks),
		"questions", len(questions),
	)
	defer span.End()

	g.logger.Info("requesting ground truth labels",
		"chunks", len(chunks),
		"questions", len(questions),
		"prompt_chars", len(system)+len(user),
	)
	start := time.Now()
	reply, err := backoff.Do(ctx, g.opts, func(ctx context.Context, _ int) (string, error) {
		return g.labeler.Label(ctx, system, user)
	})
	status := "success"
	if err != nil {
		status = "error"
	}
	g.metrics.LabelRequest(g.labeler.Name(), status, time.Since(start).Seconds())
	if err != nil {
		g.tracer.RecordError(span, err)
		return nil, fmt.Errorf("label with %s: %w", g.labeler.Name(), err)
	}

	records, err := ParseResponse(reply.Value)
	if err != nil {
		g.tracer.RecordError(span, err)
		return nil, err
	}

	result := &Result{
		Records:    records,
		UnknownIDs: UnknownChunkIDs(records, models.ChunkLookup(chunks)),
		Attempts:   reply.Attempts,
	}
	for qid, ids := range result.UnknownIDs {
		g.logger.Warn("labelled chunk ids not in chunk set", "question_id", qid, "chunk_ids", ids)
	}
	g.logger.Info("ground truth labelled", "records", len(records), "attempts", reply.Attempts)
	return result, nil
}

// UnknownChunkIDs returns, per question, the relevant ids missing from lookup.
func UnknownChunkIDs(records []models.GroundTruthRecord, lookup map[string]string) map[string][]string {
	unknown := make(map[string][]string)
	for _, r := range records {
		for _, id := range r.RelevantIDs() {
			if _, ok := lookup[id]; !ok {
				unknown[r.QuestionID] = append(unknown[r.QuestionID], id)
			}
		}
	}
	return unknown
}
