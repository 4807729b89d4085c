// Package eval scores retrieval quality of every embedding backend against
// labelled ground truth and renders the result tables.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JS12540/evaluating-embedding-models/internal/embeddings"
	"github.com/JS12540/evaluating-embedding-models/internal/groundtruth"
	"github.com/JS12540/evaluating-embedding-models/internal/infra"
	"github.com/JS12540/evaluating-embedding-models/internal/observability"
	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Backend is a query embedder paired with the index built from its document embeddings.
type Backend struct {
	Name     string
	Embedder embeddings.Provider
	Index    vectorindex.Index
}

// Options configures an Evaluator.
type Options struct {
	// TopK is the number of hits retrieved per question. Default: 5
	TopK int

	// Concurrency bounds the questions in flight per backend. Default: 4
	Concurrency int

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Logger  *slog.Logger
}

// DefaultOptions returns the evaluator defaults.
func DefaultOptions() *Options {
	return &Options{TopK: 5, Concurrency: 4}
}

// QuestionResult is the outcome of one question against one backend.
type QuestionResult struct {
	Backend         string            `json:"backend"`
	QuestionID      string            `json:"question_id"`
	Question        string            `json:"question"`
	Status          string            `json:"status"`
	Error           string            `json:"error,omitempty"`
	TruthIDs        []string          `json:"truth_ids"`
	RetrievedIDs    []string          `json:"retrieved_ids"`
	TruthChunks     []models.ChunkRef `json:"truth_chunks"`
	RetrievedChunks []models.ChunkRef `json:"retrieved_chunks"`
	Hits            []vectorindex.Hit `json:"hits,omitempty"`
	Scores          Scores            `json:"scores"`
}

// Summary is the mean of the successful questions for one backend.
type Summary struct {
	Backend   string `json:"backend"`
	Questions int    `json:"questions"`
	Failed    int    `json:"failed"`
	Scores    Scores `json:"scores"`
}

// SkippedRow is a ground truth row that could not be evaluated.
type SkippedRow struct {
	Line       int    `json:"line"`
	QuestionID string `json:"question_id,omitempty"`
	Error      string `json:"error"`
}

// Report is the full outcome of an evaluation run.
type Report struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	TopK        int              `json:"top_k"`
	Summaries   []Summary        `json:"summaries"`
	Questions   []QuestionResult `json:"questions"`
	Skipped     []SkippedRow     `json:"skipped,omitempty"`
}

// Successful returns the results that were scored.
func (r *Report) Successful() []QuestionResult {
	out := make([]QuestionResult, 0, len(r.Questions))
	for _, q := range r.Questions {
		if q.Status == StatusSuccess {
			out = append(out, q)
		}
	}
	return out
}

// Evaluator runs every ground truth question against every backend.
type Evaluator struct {
	backends []Backend
	lookup   map[string]string
	opts     Options
}

// NewEvaluator creates an evaluator. lookup maps chunk ids to their text.
func NewEvaluator(backends []Backend, lookup map[string]string, opts *Options) *Evaluator {
	o := DefaultOptions()
	if opts != nil {
		o.Metrics, o.Tracer, o.Logger = opts.Metrics, opts.Tracer, opts.Logger
		if opts.TopK > 0 {
			o.TopK = opts.TopK
		}
		if opts.Concurrency > 0 {
			o.Concurrency = opts.Concurrency
		}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if lookup == nil {
		lookup = map[string]string{}
	}
	return &Evaluator{backends: backends, lookup: lookup, opts: *o}
}

// Evaluate scores records against all backends concurrently. Skipped rows are
// reported but not scored. A cancelled ctx aborts the run without a report.
func (e *Evaluator) Evaluate(ctx context.Context, records []models.GroundTruthRecord, skipped []groundtruth.Skipped) (*Report, error) {
	if len(e.backends) == 0 {
		return nil, errors.New("no backends to evaluate")
	}
	runID := observability.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = observability.WithRunID(ctx, runID)
	}
	for _, s := range skipped {
		e.opts.Logger.WarnContext(ctx, "skipping ground truth row", "line", s.Line, "question_id", s.QuestionID, "error", s.Err)
	}

	perBackend := make([][]QuestionResult, len(e.backends))
	var wg sync.WaitGroup
	for i, b := range e.backends {
		wg.Add(1)
		go func(slot int, b Backend) {
			defer wg.Done()
			perBackend[slot] = e.evaluateBackend(ctx, b, records)
		}(i, b)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", err)
	}

	report := &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		TopK:        e.opts.TopK,
		Summaries:   make([]Summary, 0, len(e.backends)),
	}
	for _, s := range skipped {
		row := SkippedRow{Line: s.Line, QuestionID: s.QuestionID}
		if s.Err != nil {
			row.Error = s.Err.Error()
		}
		report.Skipped = append(report.Skipped, row)
	}
	for i, b := range e.backends {
		results := perBackend[i]
		summary := Summarize(b.Name, results)
		report.Summaries = append(report.Summaries, summary)
		report.Questions = append(report.Questions, results...)
		for j, name := range MetricNames {
			e.opts.Metrics.SetEvalMetric(b.Name, name, summary.Scores.Values()[j])
		}
	}
	return report, nil
}

// Summarize averages the successful results of one backend.
func Summarize(backend string, results []QuestionResult) Summary {
	summary := Summary{Backend: backend}
	scores := make([]Scores, 0, len(results))
	for _, r := range results {
		if r.Status != StatusSuccess {
			summary.Failed++
			continue
		}
		scores = append(scores, r.Scores)
	}
	summary.Questions = len(scores)
	summary.Scores = Mean(scores)
	return summary
}

func (e *Evaluator) evaluateBackend(ctx context.Context, b Backend, records []models.GroundTruthRecord) []QuestionResult {
	ctx = observability.WithBackend(ctx, b.Name)
	ctx, span := e.opts.Tracer.TraceBackendEval(ctx, b.Name)
	defer span.End()

	start := time.Now()
	results, errs := infra.ParallelProcess(ctx, records, e.opts.Concurrency, func(ctx context.Context, _ int, rec models.GroundTruthRecord) (QuestionResult, error) {
		return e.evaluateQuestion(ctx, b, rec)
	})
	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		rec := records[i]
		results[i] = QuestionResult{
			Backend:    b.Name,
			QuestionID: rec.QuestionID,
			Question:   rec.Question,
			Status:     StatusFailed,
			Error:      err.Error(),
			TruthIDs:   rec.RelevantIDs(),
		}
		if ctx.Err() == nil {
			e.opts.Logger.WarnContext(ctx, "question failed", "backend", b.Name, "question_id", rec.QuestionID, "error", err)
		}
		e.opts.Metrics.QuestionEvaluated(b.Name, StatusFailed)
	}
	if failed > 0 {
		e.opts.Tracer.RecordError(span, fmt.Errorf("%d of %d questions failed", failed, len(records)))
	}
	e.opts.Logger.InfoContext(ctx, "backend evaluated",
		"backend", b.Name,
		"questions", len(records)-failed,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results
}

func (e *Evaluator) evaluateQuestion(ctx context.Context, b Backend, rec models.GroundTruthRecord) (QuestionResult, error) {
	ctx, span := e.opts.Tracer.Start(ctx, "eval.question", "backend", b.Name, "question_id", rec.QuestionID)
	defer span.End()

	query, err := embeddings.EmbedQuery(ctx, b.Embedder, rec.Question)
	if err != nil {
		e.opts.Tracer.RecordError(span, err)
		return QuestionResult{}, fmt.Errorf("embed question: %w", err)
	}
	hits, err := b.Index.Search(ctx, query, e.opts.TopK)
	if err != nil {
		e.opts.Tracer.RecordError(span, err)
		return QuestionResult{}, fmt.Errorf("search: %w", err)
	}

	truth := rec.RelevantIDs()
	retrieved := vectorindex.HitIDs(hits)
	e.opts.Metrics.QuestionEvaluated(b.Name, StatusSuccess)
	return QuestionResult{
		Backend:         b.Name,
		QuestionID:      rec.QuestionID,
		Question:        rec.Question,
		Status:          StatusSuccess,
		TruthIDs:        truth,
		RetrievedIDs:    retrieved,
		TruthChunks:     e.refs(truth),
		RetrievedChunks: e.refs(retrieved),
		Hits:            hits,
		Scores:          Score(truth, retrieved),
	}, nil
}

// refs resolves ids to chunk texts, dropping ids the lookup does not know.
func (e *Evaluator) refs(ids []string) []models.ChunkRef {
	out := make([]models.ChunkRef, 0, len(ids))
	for _, id := range ids {
		if text, ok := e.lookup[id]; ok {
			out = append(out, models.ChunkRef{ChunkID: id, Text: text})
		}
	}
	return out
}
