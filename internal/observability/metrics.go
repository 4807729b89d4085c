package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters and histograms for a pipeline run.
//
// Collectors are registered on a dedicated registry rather than the global
// default, so several runs in one process (as in tests) never collide. Batch
// commands flush the registry with WriteTextfile when they finish.
//
//	metrics := observability.NewMetrics()
//	metrics.EmbeddingRequest("openai", "success", time.Since(start).Seconds())
//	defer metrics.WriteTextfile("out/metrics.prom")
type Metrics struct {
	registry *prometheus.Registry

	// EmbeddingRequests counts embedding calls.
	// Labels: backend, status (success|error)
	EmbeddingRequests *prometheus.CounterVec

	// EmbeddingDuration measures embedding call latency in seconds.
	// Labels: backend
	EmbeddingDuration *prometheus.HistogramVec

	// EmbeddingRetries counts retried embedding attempts.
	// Labels: backend, reason
	EmbeddingRetries *prometheus.CounterVec

	// EmbeddedTexts counts texts sent for embedding.
	// Labels: backend
	EmbeddedTexts *prometheus.CounterVec

	// EvalQuestions counts evaluated questions.
	// Labels: backend, status (success|failed)
	EvalQuestions *prometheus.CounterVec

	// EvalMetric holds the final mean metric per backend.
	// Labels: backend, metric
	EvalMetric *prometheus.GaugeVec

	// LabelRequests counts ground-truth labelling calls.
	// Labels: provider, status (success|error)
	LabelRequests *prometheus.CounterVec

	// LabelDuration measures labelling latency in seconds.
	// Labels: provider
	LabelDuration *prometheus.HistogramVec

	// ChunksProduced counts chunks emitted by the chunker.
	// Labels: mode (recursive|structured)
	ChunksProduced *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EmbeddingRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedeval_embedding_requests_total",
				Help: "Total number of embedding requests by backend and status",
			},
			[]string{"backend", "status"},
		),
		EmbeddingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embedeval_embedding_duration_seconds",
				Help:    "Duration of embedding requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"backend"},
		),
		EmbeddingRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedeval_embedding_retries_total",
				Help: "Total number of retried embedding attempts by backend and reason",
			},
			[]string{"backend", "reason"},
		),
		EmbeddedTexts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedeval_embedded_texts_total",
				Help: "Total number of texts sent for embedding",
			},
			[]string{"backend"},
		),
		EvalQuestions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedeval_eval_questions_total",
				Help: "Total number of evaluated questions by backend and status",
			},
			[]string{"backend", "status"},
		),
		EvalMetric: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "embedeval_eval_metric",
				Help: "Mean retrieval metric per backend",
			},
			[]string{"backend", "metric"},
		),
		LabelRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedeval_groundtruth_requests_total",
				Help: "Total number of ground-truth labelling requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		LabelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embedeval_groundtruth_duration_seconds",
				Help:    "Duration of ground-truth labelling requests in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"provider"},
		),
		ChunksProduced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedeval_chunks_produced_total",
				Help: "Total number of chunks produced by chunking mode",
			},
			[]string{"mode"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EmbeddingRequest records one embedding call.
func (m *Metrics) EmbeddingRequest(backend, status string, seconds float64) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.WithLabelValues(backend, status).Inc()
	m.EmbeddingDuration.WithLabelValues(backend).Observe(seconds)
}

// EmbeddingRetry records one retried attempt.
func (m *Metrics) EmbeddingRetry(backend, reason string) {
	if m == nil {
		return
	}
	m.EmbeddingRetries.WithLabelValues(backend, reason).Inc()
}

// TextsEmbedded adds n texts to the embedded counter.
func (m *Metrics) TextsEmbedded(backend string, n int) {
	if m == nil {
		return
	}
	m.EmbeddedTexts.WithLabelValues(backend).Add(float64(n))
}

// QuestionEvaluated records one evaluated question.
func (m *Metrics) QuestionEvaluated(backend, status string) {
	if m == nil {
		return
	}
	m.EvalQuestions.WithLabelValues(backend, status).Inc()
}

// SetEvalMetric publishes a summary metric value.
func (m *Metrics) SetEvalMetric(backend, metric string, value float64) {
	if m == nil {
		return
	}
	m.EvalMetric.WithLabelValues(backend, metric).Set(value)
}

// LabelRequest records one ground-truth labelling call.
func (m *Metrics) LabelRequest(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.LabelRequests.WithLabelValues(provider, status).Inc()
	m.LabelDuration.WithLabelValues(provider).Observe(seconds)
}

// ChunksEmitted adds n chunks to the produced counter.
func (m *Metrics) ChunksEmitted(mode string, n int) {
	if m == nil {
		return
	}
	m.ChunksProduced.WithLabelValues(mode).Add(float64(n))
}

// WriteTextfile writes the registry in Prometheus text format to path.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
