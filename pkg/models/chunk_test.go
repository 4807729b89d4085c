package models

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestChunkJSONShape(t *testing.T) {
	chunk := Chunk{
		Metadata: ChunkMetadata{
			ChunkID:       "acme_1",
			SectionNumber: "1",
			Heading:       "Executive Summary",
			CharLength:    5,
			WordCount:     1,
		},
		Content: "Hello",
	}
	payload, err := json.Marshal(chunk)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(payload)
	for _, want := range []string{
		`"parent_section_number":null`,
		`"parent_heading":null`,
		`"content":"Hello"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("json %s missing %s", got, want)
		}
	}
	if strings.Contains(got, "subchunk_number") {
		t.Errorf("subchunk_number should be omitted when zero: %s", got)
	}
}

func TestNonEmptyChunksAndLookup(t *testing.T) {
	chunks := []Chunk{
		{Metadata: ChunkMetadata{ChunkID: "a"}, Content: "alpha"},
		{Metadata: ChunkMetadata{ChunkID: "b"}, Content: "  \n"},
		{Metadata: ChunkMetadata{ChunkID: "c"}, Content: "gamma"},
	}
	filtered := NonEmptyChunks(chunks)
	ids := ChunkIDs(filtered)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Fatalf("ids = %v", ids)
	}
	lookup := ChunkLookup(filtered)
	if lookup["c"] != "gamma" {
		t.Errorf("lookup[c] = %q", lookup["c"])
	}
	if _, ok := lookup["b"]; ok {
		t.Errorf("empty chunk should not be in lookup")
	}
}

func TestWriteAndLoadChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chunks.json")
	parent := "2"
	in := []Chunk{
		{Metadata: ChunkMetadata{ChunkID: "chunk_1", SectionNumber: "2.1", SubchunkNumber: 1, ParentSectionNumber: &parent}, Content: "x"},
	}
	if err := WriteChunks(path, in); err != nil {
		t.Fatalf("WriteChunks: %v", err)
	}
	out, err := LoadChunks(path)
	if err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if len(out) != 1 || out[0].ID() != "chunk_1" || *out[0].Metadata.ParentSectionNumber != "2" {
		t.Fatalf("round trip = %+v", out)
	}
}

func TestLoadChunksRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.json")
	in := []Chunk{
		{Metadata: ChunkMetadata{ChunkID: "dup"}, Content: "a"},
		{Metadata: ChunkMetadata{ChunkID: "dup"}, Content: "b"},
	}
	if err := WriteChunks(path, in); err != nil {
		t.Fatalf("WriteChunks: %v", err)
	}
	if _, err := LoadChunks(path); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRelevantIDsDeduplicates(t *testing.T) {
	rec := GroundTruthRecord{Chunks: []ChunkRef{{ChunkID: "c1"}, {ChunkID: "c3"}, {ChunkID: "c1"}, {ChunkID: ""}}}
	ids := rec.RelevantIDs()
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c3" {
		t.Fatalf("ids = %v", ids)
	}
}
