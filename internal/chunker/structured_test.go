package chunker

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JS12540/evaluating-embedding-models/internal/document"
)

const testTOC = `
sections:
  - number: "1"
    heading: "Executive Summary"
  - number: "2"
    heading: "Platform"
    subsections:
      - number: "2.1"
        heading: "Mission"
      - number: "2.2"
        heading: "Missing Part"
  - number: "3"
    heading: "Empty Section"
  - number: "10"
    heading: "Contact"
`

func paragraphs(texts ...string) *document.Document {
	doc := &document.Document{}
	for _, text := range texts {
		doc.Paragraphs = append(doc.Paragraphs, document.Paragraph{Text: text})
	}
	return doc
}

func TestStructuredChunk(t *testing.T) {
	toc, err := ParseTOC([]byte(testTOC))
	if err != nil {
		t.Fatalf("ParseTOC() error = %v", err)
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	c := NewStructured(DefaultConfig(), toc, logger)

	doc := paragraphs(
		"Table of Contents",
		"2.1 Mission ........ 3",
		"",
		"1. Executive Summary",
		"  Summary body.  ",
		"Second summary line.",
		"2.1 Mission",
		"Mission body.",
		"3. Empty Section",
		"10 Contact",
		"Call us.",
	)
	result, err := c.ChunkWithReport(context.Background(), doc)
	if err != nil {
		t.Fatalf("ChunkWithReport() error = %v", err)
	}

	ids := make([]string, 0, len(result.Chunks))
	for _, chunk := range result.Chunks {
		ids = append(ids, chunk.Metadata.ChunkID)
	}
	if strings.Join(ids, ",") != "acme_1,acme_2.1,acme_10" {
		t.Fatalf("ids = %v", ids)
	}

	summary := result.Chunks[0]
	if summary.Content != "Summary body.\nSecond summary line." {
		t.Errorf("summary content = %q", summary.Content)
	}
	if summary.Metadata.ParentSectionNumber != nil || summary.Metadata.SubchunkNumber != 0 {
		t.Errorf("summary metadata = %+v", summary.Metadata)
	}
	if summary.Metadata.WordCount != 5 || summary.Metadata.CharLength != len("Summary body.\nSecond summary line.") {
		t.Errorf("summary lengths = %d/%d", summary.Metadata.WordCount, summary.Metadata.CharLength)
	}

	mission := result.Chunks[1]
	if mission.Content != "Mission body." {
		t.Errorf("mission content = %q", mission.Content)
	}
	if mission.Metadata.ParentSectionNumber == nil || *mission.Metadata.ParentSectionNumber != "2" ||
		mission.Metadata.ParentHeading == nil || *mission.Metadata.ParentHeading != "Platform" {
		t.Errorf("mission parent = %+v", mission.Metadata)
	}

	if len(result.Missing) != 1 || result.Missing[0].Number != "2.2" {
		t.Errorf("missing = %+v", result.Missing)
	}
	if len(result.Empty) != 1 || result.Empty[0].Number != "3" {
		t.Errorf("empty = %+v", result.Empty)
	}
	if !strings.Contains(logs.String(), "section heading not found") {
		t.Errorf("expected missing-heading warning, logs: %s", logs.String())
	}
}

func TestStructuredNoStartMarker(t *testing.T) {
	c := NewStructured(DefaultConfig(), DefaultTOC(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	result, err := c.ChunkWithReport(context.Background(), paragraphs("2.1 Our Mission", "text"))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Chunks) != 0 {
		t.Errorf("chunks = %+v, want none before the start marker", result.Chunks)
	}
	if len(result.Missing) != len(DefaultTOC().Targets()) {
		t.Errorf("missing = %d", len(result.Missing))
	}
}

func TestDefaultTOC(t *testing.T) {
	toc := DefaultTOC()
	if len(toc.Sections) != 17 {
		t.Fatalf("sections = %d, want 17", len(toc.Sections))
	}
	targets := toc.Targets()
	if targets[0].Number != "1" || targets[0].ParentNumber != nil {
		t.Errorf("first target = %+v", targets[0])
	}
	if targets[1].Number != "2.1" || *targets[1].ParentHeading != "Introduction to Acme" {
		t.Errorf("second target = %+v", targets[1])
	}
	last := targets[len(targets)-1]
	if last.Number != "17.3" {
		t.Errorf("last target = %+v", last)
	}
}

func TestParseTOCErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "sections: []"},
		{name: "bad number", data: "sections:\n  - number: \"one\"\n    heading: x"},
		{name: "duplicate", data: "sections:\n  - number: \"1\"\n    heading: a\n  - number: \"1\"\n    heading: b"},
		{name: "unknown field", data: "sections:\n  - number: \"1\"\n    heading: a\n    title: b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTOC([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadTOC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toc.yaml")
	if err := os.WriteFile(path, []byte(testTOC), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Mode = "structured"
	cfg.TOCPath = path
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := len(c.(*StructuredChunker).targets); got != 5 {
		t.Errorf("targets = %d, want 5", got)
	}
}

func TestCompareSectionNumbers(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{a: "9.2", b: "10", want: -1},
		{a: "2", b: "2.1", want: -1},
		{a: "12.1", b: "12.1", want: 0},
		{a: "3.10", b: "3.9", want: 1},
	}
	for _, tt := range tests {
		got := compareSectionNumbers(tt.a, tt.b)
		if (got < 0) != (tt.want < 0) || (got > 0) != (tt.want > 0) {
			t.Errorf("compareSectionNumbers(%q, %q) = %d, want sign of %d", tt.a, tt.b, got, tt.want)
		}
	}
}
