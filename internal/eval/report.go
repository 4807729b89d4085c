package eval

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// Output file names written by WriteFiles.
const (
	SummaryFile  = "evaluation_results.csv"
	DetailedFile = "detailed_per_question_results.csv"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func metricCells(s Scores) []string {
	values := s.Values()
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = formatFloat(v)
	}
	return cells
}

// WriteSummaryCSV writes one row per backend.
func WriteSummaryCSV(w io.Writer, summaries []Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"backend", "questions"}, MetricNames...)); err != nil {
		return err
	}
	for _, s := range summaries {
		row := append([]string{s.Backend, strconv.Itoa(s.Questions)}, metricCells(s.Scores)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDetailedCSV writes one row per scored (backend, question) pair.
func WriteDetailedCSV(w io.Writer, results []QuestionResult) error {
	cw := csv.NewWriter(w)
	header := append([]string{"backend", "question_id", "question", "truth_chunks", "retrieved_chunks"}, MetricNames...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		if r.Status != StatusSuccess {
			continue
		}
		truth, err := chunksCell(r.TruthChunks)
		if err != nil {
			return err
		}
		retrieved, err := chunksCell(r.RetrievedChunks)
		if err != nil {
			return err
		}
		row := append([]string{r.Backend, r.QuestionID, r.Question, truth, retrieved}, metricCells(r.Scores)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func chunksCell(refs []models.ChunkRef) (string, error) {
	if refs == nil {
		refs = []models.ChunkRef{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(refs); err != nil {
		return "", fmt.Errorf("encode chunks: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintSummary renders the per-backend summary as an aligned table.
func PrintSummary(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "BACKEND\tQUESTIONS\tFAILED")
	for _, name := range MetricNames {
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw)
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d", s.Backend, s.Questions, s.Failed)
		for _, v := range s.Scores.Values() {
			fmt.Fprintf(tw, "\t%.4f", v)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// WriteFiles writes both CSV tables into dir and, when reportPath is set,
// the JSON report. It returns the paths written.
func WriteFiles(dir, reportPath string, report *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	var written []string
	write := func(path string, fn func(io.Writer) error) error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(filepath.Join(dir, SummaryFile), func(w io.Writer) error {
		return WriteSummaryCSV(w, report.Summaries)
	}); err != nil {
		return written, err
	}
	if err := write(filepath.Join(dir, DetailedFile), func(w io.Writer) error {
		return WriteDetailedCSV(w, report.Questions)
	}); err != nil {
		return written, err
	}
	if reportPath != "" {
		if err := write(reportPath, func(w io.Writer) error {
			return WriteJSON(w, report)
		}); err != nil {
			return written, err
		}
	}
	return written, nil
}
