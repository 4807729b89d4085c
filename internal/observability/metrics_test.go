package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.EmbeddingRequest("openai", "success", 0.2)
	m.EmbeddingRequest("openai", "success", 0.3)
	m.EmbeddingRetry("openai", "rate_limit")
	m.TextsEmbedded("openai", 32)
	m.QuestionEvaluated("cohere", "failed")
	m.SetEvalMetric("cohere", "mrr", 0.75)
	m.ChunksEmitted("recursive", 4)

	if got := testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("openai", "success")); got != 2 {
		t.Errorf("embedding requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EmbeddedTexts.WithLabelValues("openai")); got != 32 {
		t.Errorf("embedded texts = %v, want 32", got)
	}
	if got := testutil.ToFloat64(m.EvalMetric.WithLabelValues("cohere", "mrr")); got != 0.75 {
		t.Errorf("eval metric = %v, want 0.75", got)
	}
	if got := testutil.ToFloat64(m.ChunksProduced.WithLabelValues("recursive")); got != 4 {
		t.Errorf("chunks = %v, want 4", got)
	}
}

func TestMetricsIsolatedRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.QuestionEvaluated("x", "success")
	if got := testutil.ToFloat64(b.EvalQuestions.WithLabelValues("x", "success")); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.EmbeddingRequest("a", "b", 1)
	m.LabelRequest("a", "b", 1)
	if err := m.WriteTextfile("ignored"); err != nil {
		t.Errorf("WriteTextfile on nil = %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.LabelRequest("openai", "success", 2)
	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `embedeval_groundtruth_requests_total{provider="openai",status="success"} 1`) {
		t.Errorf("textfile missing counter:\n%s", data)
	}
	if err := m.WriteTextfile(""); err != nil {
		t.Errorf("empty path should be a no-op: %v", err)
	}
}
