// Package chunker splits parsed documents into retrievable chunks carrying
// section metadata. Two strategies exist: a recursive heading-hierarchy
// splitter with fixed character windows, and a structured splitter driven by a
// known table of contents.
package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JS12540/evaluating-embedding-models/internal/document"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// Chunker defines the interface for chunking strategies.
type Chunker interface {
	// Chunk splits a document into chunks.
	Chunk(ctx context.Context, doc *document.Document) ([]models.Chunk, error)

	// Name returns the chunker name for logging and debugging.
	Name() string
}

// Config contains configuration for both chunkers.
type Config struct {
	// Mode selects the strategy: "recursive" or "structured".
	// Default: recursive
	Mode string `yaml:"mode"`

	// ChunkSize is the window size in characters (recursive mode).
	// Default: 500
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the number of characters shared by adjacent windows.
	// Default: 50
	ChunkOverlap int `yaml:"chunk_overlap"`

	// TOCPath overrides the embedded table of contents (structured mode).
	TOCPath string `yaml:"toc_path"`

	// StartPrefix and StartContains identify the first content paragraph
	// (structured mode). Default: "1." and "Executive Summary"
	StartPrefix   string `yaml:"start_prefix"`
	StartContains string `yaml:"start_contains"`

	// IDPrefix is prepended to section numbers to form chunk ids (structured mode).
	// Default: "acme_"
	IDPrefix string `yaml:"id_prefix"`
}

// DefaultConfig returns the default chunker configuration.
func DefaultConfig() Config {
	return Config{
		Mode:          "recursive",
		ChunkSize:     500,
		ChunkOverlap:  50,
		StartPrefix:   "1.",
		StartContains: "Executive Summary",
		IDPrefix:      "acme_",
	}
}

// Validate checks the window parameters. An overlap of at least the window
// size would never advance, so it is rejected.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// New builds the chunker selected by cfg.Mode.
func New(cfg Config, logger *slog.Logger) (Chunker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "recursive":
		return NewRecursive(cfg)
	case "structured", "toc":
		toc := DefaultTOC()
		if cfg.TOCPath != "" {
			loaded, err := LoadTOC(cfg.TOCPath)
			if err != nil {
				return nil, err
			}
			toc = loaded
		}
		return NewStructured(cfg, toc, logger), nil
	default:
		return nil, fmt.Errorf("unknown chunking mode %q", cfg.Mode)
	}
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
