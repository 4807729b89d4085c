// Package models defines the core data types shared by the embedeval stages.
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Chunk is a bounded span of document text with heading metadata.
// Chunks are produced once by the chunker and never mutated afterwards.
type Chunk struct {
	// Metadata describes where the chunk sits in the source document.
	Metadata ChunkMetadata `json:"metadata"`

	// Content is the chunk text, trimmed of surrounding whitespace.
	Content string `json:"content"`
}

// ChunkMetadata contains the heading-derived information about a chunk.
type ChunkMetadata struct {
	// ChunkID is the stable identifier of the chunk (e.g. "chunk_12", "acme_5.2").
	ChunkID string `json:"chunk_id"`

	// SectionNumber is the dotted section number (e.g. "3.1").
	SectionNumber string `json:"section_number"`

	// SubchunkNumber is the 1-based window index within the section.
	// Only set by window-splitting chunkers.
	SubchunkNumber int `json:"subchunk_number,omitempty"`

	// Heading is the section heading text.
	Heading string `json:"heading"`

	// ParentSectionNumber is the enclosing section number, nil for top-level sections.
	ParentSectionNumber *string `json:"parent_section_number"`

	// ParentHeading is the enclosing section heading, nil for top-level sections.
	ParentHeading *string `json:"parent_heading"`

	// CharLength is the character (rune) length of the untrimmed chunk text.
	CharLength int `json:"char_length"`

	// WordCount is the number of whitespace separated words.
	WordCount int `json:"word_count"`
}

// ID returns the chunk identifier.
func (c Chunk) ID() string {
	return c.Metadata.ChunkID
}

// IsEmpty reports whether the chunk carries no text.
func (c Chunk) IsEmpty() bool {
	return strings.TrimSpace(c.Content) == ""
}

// ChunkRef is the reduced {chunk_id, text} form used in prompts, ground truth and reports.
type ChunkRef struct {
	ChunkID string `json:"chunk_id" jsonschema:"required"`
	Text    string `json:"text"`
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NonEmptyChunks returns the chunks whose content is not blank.
// This is the single filtering policy applied when building indices and
// when resolving chunk ids back to text.
func NonEmptyChunks(chunks []Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.IsEmpty() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ChunkLookup maps chunk ids to chunk text.
func ChunkLookup(chunks []Chunk) map[string]string {
	lookup := make(map[string]string, len(chunks))
	for _, c := range chunks {
		lookup[c.Metadata.ChunkID] = c.Content
	}
	return lookup
}

// ChunkIDs returns the chunk ids in order.
func ChunkIDs(chunks []Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.Metadata.ChunkID
	}
	return ids
}

// LoadChunks reads a JSON chunk file.
func LoadChunks(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	var chunks []Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parse chunks %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(chunks))
	for i, c := range chunks {
		id := c.Metadata.ChunkID
		if id == "" {
			return nil, fmt.Errorf("chunk %d missing chunk_id", i)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate chunk_id %q", id)
		}
		seen[id] = struct{}{}
	}
	return chunks, nil
}

// WriteChunks writes chunks as an indented JSON array, creating parent directories.
func WriteChunks(path string, chunks []Chunk) error {
	if chunks == nil {
		chunks = []Chunk{}
	}
	payload, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chunk dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return nil
}
