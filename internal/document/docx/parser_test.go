package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JS12540/evaluating-embedding-models/internal/document"
)

const testStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
  <w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>
  <w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/></w:style>
  <w:style w:type="paragraph" w:styleId="BadHeading"><w:name w:val="Heading Custom"/></w:style>
  <w:style w:type="character" w:styleId="Strong"><w:name w:val="Strong"/></w:style>
</w:styles>`

const testDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>1. Executive </w:t></w:r><w:r><w:t>Summary</w:t></w:r></w:p>
    <w:p><w:r><w:t>Body</w:t><w:tab/><w:t>text</w:t><w:br/><w:t>next line</w:t></w:r></w:p>
    <w:p><w:hyperlink><w:r><w:t>linked</w:t></w:r></w:hyperlink></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>table cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
    <w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>1.1 Scope</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="BadHeading"/></w:pPr><w:r><w:t>odd</w:t></w:r></w:p>
    <w:p><w:pPr><w:pStyle w:val="Heading3"/></w:pPr><w:r><w:t>no styles entry</w:t></w:r></w:p>
    <w:p/>
  </w:body>
</w:document>`

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	data := buildDocx(t, map[string]string{
		"word/document.xml": testDocument,
		"word/styles.xml":   testStyles,
	})
	doc, err := New().Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []document.Paragraph{
		{Text: "1. Executive Summary", Style: "Heading 1", Level: 1},
		{Text: "Body\ttext\nnext line", Style: "Normal", Level: 0},
		{Text: "linked", Style: "Normal", Level: 0},
		{Text: "1.1 Scope", Style: "Heading 2", Level: 2},
		{Text: "odd", Style: "Heading Custom", Level: document.UnparseableHeading},
		{Text: "no styles entry", Style: "Heading 3", Level: 3},
		{Text: "", Style: "Normal", Level: 0},
	}
	if len(doc.Paragraphs) != len(want) {
		t.Fatalf("paragraphs = %+v", doc.Paragraphs)
	}
	for i := range want {
		if doc.Paragraphs[i] != want[i] {
			t.Errorf("paragraph %d = %+v, want %+v", i, doc.Paragraphs[i], want[i])
		}
	}
}

func TestParseWithoutStyles(t *testing.T) {
	data := buildDocx(t, map[string]string{"word/document.xml": testDocument})
	doc, err := New().Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Paragraphs[0].Style != "Heading 1" || doc.Paragraphs[1].Style != "Normal" {
		t.Errorf("styles = %q, %q", doc.Paragraphs[0].Style, doc.Paragraphs[1].Style)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "not a zip", data: []byte("plain text"), want: "container"},
		{name: "missing document part", data: buildDocx(t, map[string]string{"word/other.xml": "<x/>"}), want: "word/document.xml"},
		{name: "malformed xml", data: buildDocx(t, map[string]string{"word/document.xml": "<w:document><w:body><w:p>"}), want: "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Parse(context.Background(), bytes.NewReader(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse() error = %v, want %q", err, tt.want)
			}
		})
	}
}
