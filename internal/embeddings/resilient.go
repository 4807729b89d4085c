package embeddings

import (
	"context"
	"log/slog"
	"time"

	"github.com/JS12540/evaluating-embedding-models/internal/backoff"
	"github.com/JS12540/evaluating-embedding-models/internal/observability"
	"github.com/JS12540/evaluating-embedding-models/internal/ratelimit"
)

// ResilientConfig configures the resilient wrapper.
type ResilientConfig struct {
	// Backend labels logs and metrics. Defaults to the provider name.
	Backend string

	// Timeout bounds each attempt. Default: 60s
	Timeout time.Duration

	// MaxAttempts bounds the calls per request. Default: 3
	MaxAttempts int

	// Policy controls the delay between attempts.
	Policy backoff.Policy

	// RateLimit throttles requests. The zero value disables it.
	RateLimit ratelimit.Config
}

// Resilient wraps a Provider with per-attempt timeouts, bounded retries of
// retryable errors, a token-bucket rate limit, metrics and tracing.
type Resilient struct {
	inner   Provider
	backend string
	opts    backoff.Options
	limiter *ratelimit.Bucket
	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger
}

var (
	_ Provider      = (*Resilient)(nil)
	_ QueryEmbedder = (*Resilient)(nil)
)

// Option customizes a Resilient provider.
type Option func(*Resilient)

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Resilient) { r.metrics = m }
}

// WithTracer records a span per request.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Resilient) { r.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resilient) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResilient wraps inner.
func NewResilient(inner Provider, cfg ResilientConfig, opts ...Option) *Resilient {
	if cfg.Backend == "" {
		cfg.Backend = inner.Name()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	r := &Resilient{
		inner:   inner,
		backend: cfg.Backend,
		limiter: ratelimit.NewBucket(cfg.RateLimit),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("backend", cfg.Backend, "provider", inner.Name())
	r.opts = backoff.Options{
		Policy:      cfg.Policy,
		MaxAttempts: cfg.MaxAttempts,
		Timeout:     cfg.Timeout,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			reason := backoff.Classify(err)
			r.metrics.EmbeddingRetry(r.backend, string(reason))
			r.logger.Warn("embedding request failed, retrying",
				"attempt", attempt,
				"reason", reason,
				"delay", delay,
				"error", err,
			)
		},
	}
	return r
}

// Name returns the backend name.
func (r *Resilient) Name() string {
	return r.backend
}

// Dimension returns the wrapped provider's dimension.
func (r *Resilient) Dimension() int {
	return r.inner.Dimension()
}

// MaxBatchSize returns the wrapped provider's batch limit.
func (r *Resilient) MaxBatchSize() int {
	return r.inner.MaxBatchSize()
}

// Unwrap returns the wrapped provider.
func (r *Resilient) Unwrap() Provider {
	return r.inner
}

// Embed embeds a single document text.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	return call(ctx, r, 1, func(ctx context.Context) ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
}

// EmbedBatch embeds document texts.
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return call(ctx, r, len(texts), func(ctx context.Context) ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
}

// EmbedQuery embeds a search query, using the wrapped provider's query mode when it has one.
func (r *Resilient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return call(ctx, r, 1, func(ctx context.Context) ([]float32, error) {
		return EmbedQuery(ctx, r.inner, text)
	})
}

func call[T any](ctx context.Context, r *Resilient, texts int, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := r.tracer.TraceEmbedding(ctx, r.backend, texts)
	defer span.End()

	start := time.Now()
	result, err := backoff.Do(ctx, r.opts, func(ctx context.Context, _ int) (T, error) {
		if err := r.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return fn(ctx)
	})
	status := "success"
	if err != nil {
		status = "error"
		r.tracer.RecordError(span, err)
	} else {
		r.metrics.TextsEmbedded(r.backend, texts)
	}
	r.metrics.EmbeddingRequest(r.backend, status, time.Since(start).Seconds())
	return result.Value, err
}
