package eval

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JS12540/evaluating-embedding-models/internal/backoff"
	"github.com/JS12540/evaluating-embedding-models/internal/embeddings"
	"github.com/JS12540/evaluating-embedding-models/internal/groundtruth"
	"github.com/JS12540/evaluating-embedding-models/internal/observability"
	"github.com/JS12540/evaluating-embedding-models/internal/vectorindex"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestMetricsWorkedExample(t *testing.T) {
	truth := []string{"c1", "c3"}
	retrieved := []string{"c5", "c1", "c2", "c3", "c9"}

	got := Score(truth, retrieved)
	want := Scores{
		Recall3:    0.5,
		Recall5:    1,
		Precision3: 1.0 / 3,
		Precision5: 2.0 / 5,
		MRR:        0.5,
		NDCG3:      (1 / math.Log2(3)) / (1 + 1/math.Log2(3)),
		NDCG5:      (1/math.Log2(3) + 1/math.Log2(5)) / (1 + 1/math.Log2(3)),
	}
	gv, wv := got.Values(), want.Values()
	for i, name := range MetricNames {
		if !near(gv[i], wv[i]) {
			t.Errorf("%s = %v, want %v", name, gv[i], wv[i])
		}
	}
}

func TestMetricEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "recall empty truth", got: RecallAtK(nil, []string{"a"}, 3), want: 0},
		{name: "precision zero k", got: PrecisionAtK([]string{"a"}, []string{"a"}, 0), want: 0},
		{name: "precision divides by k not hits", got: PrecisionAtK([]string{"a"}, []string{"a"}, 5), want: 0.2},
		{name: "recall k beyond retrieved", got: RecallAtK([]string{"a", "b"}, []string{"b"}, 10), want: 0.5},
		{name: "mrr no hit", got: MRR([]string{"a"}, []string{"x", "y"}), want: 0},
		{name: "mrr first position", got: MRR([]string{"a"}, []string{"a", "y"}), want: 1},
		{name: "ndcg empty truth", got: NDCGAtK(nil, []string{"a"}, 5), want: 0},
		{name: "ndcg perfect", got: NDCGAtK([]string{"a", "b"}, []string{"a", "b", "c"}, 3), want: 1},
		{name: "ndcg ideal capped at k", got: NDCGAtK([]string{"a", "b", "c", "d"}, []string{"a", "x", "y"}, 1), want: 1},
		{name: "duplicate truth ids counted once", got: RecallAtK([]string{"a", "a"}, []string{"a"}, 3), want: 1},
		{name: "ndcg repeated hit gains once", got: NDCGAtK([]string{"a"}, []string{"a", "a", "a"}, 3), want: 1},
		{name: "ndcg repeated hit after miss", got: NDCGAtK([]string{"a", "b"}, []string{"x", "a", "a"}, 3), want: (1 / math.Log2(3)) / (1 + 1/math.Log2(3))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !near(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMetricBounds(t *testing.T) {
	cases := [][2][]string{
		{{"a"}, {"a", "a", "a"}},
		{{"a", "b", "c"}, {"c", "b", "a", "d", "e"}},
		{{"z"}, {"a", "b"}},
		{{}, {}},
	}
	for _, c := range cases {
		for i, v := range Score(c[0], c[1]).Values() {
			if v < 0 || v > 1 {
				t.Errorf("%s(%v, %v) = %v out of [0,1]", MetricNames[i], c[0], c[1], v)
			}
		}
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != (Scores{}) {
		t.Fatalf("Mean(nil) = %+v", got)
	}
	got := Mean([]Scores{{Recall3: 1, MRR: 0.5}, {Recall3: 0, MRR: 1}})
	if !near(got.Recall3, 0.5) || !near(got.MRR, 0.75) {
		t.Fatalf("Mean = %+v", got)
	}
}

// lineProvider maps each question to a point on the x axis.
type lineProvider struct {
	points map[string]float32
}

func (p *lineProvider) Name() string      { return "line" }
func (p *lineProvider) Dimension() int    { return 2 }
func (p *lineProvider) MaxBatchSize() int { return 16 }

func (p *lineProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embeddings.First(p.EmbedBatch(ctx, []string{text}))
}

func (p *lineProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		x, ok := p.points[text]
		if !ok {
			return nil, backoff.Permanent(errors.New("no point for " + text))
		}
		out[i] = []float32{x, 0}
	}
	return out, nil
}

func lineIndex(t *testing.T) vectorindex.Index {
	t.Helper()
	idx := vectorindex.NewMemory(2)
	var entries []vectorindex.Entry
	for i, id := range []string{"c1", "c2", "c3", "c4", "c5", "c6"} {
		entries = append(entries, vectorindex.Entry{ChunkID: id, Vector: []float32{float32(i), 0}})
	}
	if err := idx.Add(context.Background(), entries); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return idx
}

func testLookup() map[string]string {
	return map[string]string{
		"c1": "one", "c2": "two", "c3": "three", "c4": "four", "c5": "five", "c6": "six",
	}
}

func testRecords() []models.GroundTruthRecord {
	return []models.GroundTruthRecord{
		{QuestionID: "Q1", Question: "near one", Chunks: []models.ChunkRef{{ChunkID: "c1"}, {ChunkID: "c3"}}},
		{QuestionID: "Q2", Question: "near six", Chunks: []models.ChunkRef{{ChunkID: "c6"}, {ChunkID: "ghost"}}},
		{QuestionID: "Q3", Question: "unknown", Chunks: []models.ChunkRef{{ChunkID: "c2"}}},
	}
}

func testBackends(t *testing.T) []Backend {
	t.Helper()
	full := &lineProvider{points: map[string]float32{"near one": 0, "near six": 5, "unknown": 2}}
	partial := &lineProvider{points: map[string]float32{"near one": 0, "near six": 5}}
	return []Backend{
		{Name: "alpha", Embedder: full, Index: lineIndex(t)},
		{Name: "beta", Embedder: partial, Index: lineIndex(t)},
	}
}

func TestEvaluate(t *testing.T) {
	metrics := observability.NewMetrics()
	ev := NewEvaluator(testBackends(t), testLookup(), &Options{TopK: 5, Concurrency: 2, Metrics: metrics})
	report, err := ev.Evaluate(context.Background(), testRecords(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.RunID == "" || report.GeneratedAt.IsZero() {
		t.Errorf("report missing run id or timestamp: %+v", report)
	}

	if len(report.Questions) != 6 {
		t.Fatalf("questions = %d, want 6", len(report.Questions))
	}
	order := []string{"alpha/Q1", "alpha/Q2", "alpha/Q3", "beta/Q1", "beta/Q2", "beta/Q3"}
	for i, q := range report.Questions {
		if got := q.Backend + "/" + q.QuestionID; got != order[i] {
			t.Errorf("question %d = %s, want %s", i, got, order[i])
		}
	}

	q1 := report.Questions[0]
	if strings.Join(q1.RetrievedIDs, ",") != "c1,c2,c3,c4,c5" {
		t.Errorf("Q1 retrieved = %v", q1.RetrievedIDs)
	}
	if !near(q1.Scores.Recall3, 1) || !near(q1.Scores.Precision3, 2.0/3) || !near(q1.Scores.MRR, 1) {
		t.Errorf("Q1 scores = %+v", q1.Scores)
	}

	q2 := report.Questions[1]
	if len(q2.TruthChunks) != 1 || q2.TruthChunks[0].Text != "six" {
		t.Errorf("unknown truth id should be omitted from text: %+v", q2.TruthChunks)
	}
	if !near(q2.Scores.Recall5, 0.5) {
		t.Errorf("Q2 recall@5 = %v, want 0.5 counting the unknown id", q2.Scores.Recall5)
	}

	beta := report.Summaries[1]
	if beta.Questions != 2 || beta.Failed != 1 {
		t.Fatalf("beta summary = %+v, want 2 scored and 1 failed", beta)
	}
	if report.Questions[5].Status != StatusFailed || report.Questions[5].Error == "" {
		t.Errorf("beta/Q3 = %+v, want failed", report.Questions[5])
	}
	wantMRR := (q1.Scores.MRR + q2.Scores.MRR) / 2
	if !near(beta.Scores.MRR, wantMRR) {
		t.Errorf("beta mrr = %v, want mean of successes %v", beta.Scores.MRR, wantMRR)
	}

	if got := testutil.ToFloat64(metrics.EvalQuestions.WithLabelValues("beta", StatusFailed)); got != 1 {
		t.Errorf("failed counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.EvalMetric.WithLabelValues("alpha", "mrr")); !near(got, report.Summaries[0].Scores.MRR) {
		t.Errorf("mrr gauge = %v, want %v", got, report.Summaries[0].Scores.MRR)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	backends := testBackends(t)
	render := func() string {
		ev := NewEvaluator(backends, testLookup(), nil)
		report, err := ev.Evaluate(context.Background(), testRecords(), nil)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		var buf bytes.Buffer
		if err := WriteSummaryCSV(&buf, report.Summaries); err != nil {
			t.Fatal(err)
		}
		if err := WriteDetailedCSV(&buf, report.Questions); err != nil {
			t.Fatal(err)
		}
		return buf.String()
	}
	if first, second := render(), render(); first != second {
		t.Fatalf("tables differ between runs:\n%s\n---\n%s", first, second)
	}
}

func TestEvaluateLogsWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Format: "json", Output: &buf})
	ev := NewEvaluator(testBackends(t), testLookup(), &Options{Logger: logger.Slog()})

	ctx := observability.WithRunID(context.Background(), "run-eval")
	if _, err := ev.Evaluate(ctx, testRecords(), nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	var evaluated, failed int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		if record["run_id"] != "run-eval" {
			t.Errorf("record without run id: %s", line)
		}
		switch record["msg"] {
		case "backend evaluated":
			evaluated++
		case "question failed":
			failed++
			if record["backend"] != "beta" || record["question_id"] != "Q3" {
				t.Errorf("failed record = %v", record)
			}
		}
	}
	if evaluated != 2 || failed != 1 {
		t.Errorf("evaluated = %d, failed = %d; logs:\n%s", evaluated, failed, buf.String())
	}
}

func TestEvaluateEmptyRecords(t *testing.T) {
	ev := NewEvaluator(testBackends(t), testLookup(), nil)
	skipped := []groundtruth.Skipped{{Line: 4, QuestionID: "Q3", Err: errors.New("bad chunks")}}
	report, err := ev.Evaluate(context.Background(), nil, skipped)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, s := range report.Summaries {
		if s.Questions != 0 || s.Scores != (Scores{}) {
			t.Errorf("summary = %+v, want zeros", s)
		}
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Error != "bad chunks" {
		t.Errorf("skipped = %+v", report.Skipped)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev := NewEvaluator(testBackends(t), testLookup(), nil)
	if _, err := ev.Evaluate(ctx, testRecords(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestEvaluateNoBackends(t *testing.T) {
	if _, err := NewEvaluator(nil, nil, nil).Evaluate(context.Background(), testRecords(), nil); err == nil {
		t.Fatal("expected error without backends")
	}
}

func TestWriteFiles(t *testing.T) {
	ev := NewEvaluator(testBackends(t), testLookup(), nil)
	report, err := ev.Evaluate(context.Background(), testRecords(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report", "run.json")
	written, err := WriteFiles(dir, reportPath, report)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("written = %v", written)
	}

	f, err := os.Open(filepath.Join(dir, SummaryFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(rows[0], ","); got != "backend,questions,recall@3,recall@5,precision@3,precision@5,mrr,ndcg@3,ndcg@5" {
		t.Errorf("summary header = %s", got)
	}
	if len(rows) != 3 || rows[1][0] != "alpha" || rows[1][1] != "3" || rows[2][1] != "2" {
		t.Errorf("summary rows = %v", rows)
	}

	df, err := os.Open(filepath.Join(dir, DetailedFile))
	if err != nil {
		t.Fatal(err)
	}
	defer df.Close()
	detail, err := csv.NewReader(df).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(detail) != 6 {
		t.Fatalf("detail rows = %d, want header plus 5 scored", len(detail))
	}
	var truth []models.ChunkRef
	if err := json.Unmarshal([]byte(detail[1][3]), &truth); err != nil {
		t.Fatalf("truth_chunks cell: %v", err)
	}
	if len(truth) != 2 || truth[1].ChunkID != "c3" || truth[1].Text != "three" {
		t.Errorf("truth_chunks = %+v", truth)
	}
	if detail[1][5] != "1" || detail[1][7] != "0.6666666666666666" {
		t.Errorf("float formatting: recall@3 %q precision@3 %q", detail[1][5], detail[1][7])
	}

	payload, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Report
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("report json: %v", err)
	}
	if decoded.RunID != report.RunID || len(decoded.Summaries) != 2 {
		t.Errorf("decoded report = %+v", decoded)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	err := PrintSummary(&buf, []Summary{{Backend: "openai", Questions: 5, Scores: Scores{MRR: 0.5}}})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "BACKEND") || !strings.Contains(lines[1], "0.5000") {
		t.Fatalf("table = %q", buf.String())
	}
}
