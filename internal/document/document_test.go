package document

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{style: "Heading 1", want: 1},
		{style: "Heading 3", want: 3},
		{style: "Heading 2 Char", want: 2},
		{style: "Heading", want: UnparseableHeading},
		{style: "Heading X", want: UnparseableHeading},
		{style: "Heading  1", want: UnparseableHeading},
		{style: "Normal", want: 0},
		{style: "Title", want: 0},
		{style: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			if got := HeadingLevel(tt.style); got != tt.want {
				t.Errorf("HeadingLevel(%q) = %d, want %d", tt.style, got, tt.want)
			}
		})
	}
}

func TestNewParagraphNormalizes(t *testing.T) {
	p := NewParagraph("Cafe\u0301", "Normal")
	if p.Text != "Caf\u00e9" {
		t.Errorf("text = %q, want NFC form", p.Text)
	}
	if p.IsHeading() {
		t.Error("body paragraph reported as heading")
	}
}

type stubParser struct{}

func (stubParser) Parse(_ context.Context, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Document{Paragraphs: []Paragraph{NewParagraph(string(data), "Normal")}}, nil
}
func (stubParser) Name() string                  { return "stub" }
func (stubParser) SupportedExtensions() []string { return []string{".STUB"} }

func TestRegistryParseFile(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubParser{})

	path := filepath.Join(t.TempDir(), "notes.stub")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := reg.ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if doc.Name != "notes" || len(doc.Paragraphs) != 1 || doc.Paragraphs[0].Text != "hello" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubParser{})

	if _, err := reg.ParseFile(context.Background(), "file.pdf"); err == nil || !strings.Contains(err.Error(), "no parser for extension") {
		t.Errorf("unknown extension error = %v", err)
	}
	if _, err := reg.ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.stub")); err == nil {
		t.Error("expected error for missing file")
	}
}
