package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/JS12540/evaluating-embedding-models/internal/document"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// StructuredChunker produces one chunk per table-of-contents target, taking
// the text between its heading and the next located heading.
type StructuredChunker struct {
	targets       []Target
	startPrefix   string
	startContains string
	idPrefix      string
	logger        *slog.Logger
}

// Result reports what the structured chunker found.
type Result struct {
	Chunks []models.Chunk

	// Missing lists targets whose heading was not found.
	Missing []Target

	// Empty lists targets that were found but had no content.
	Empty []Target
}

// NewStructured creates a structured chunker for toc.
func NewStructured(cfg Config, toc TOC, logger *slog.Logger) *StructuredChunker {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.StartPrefix == "" && cfg.StartContains == "" {
		cfg.StartPrefix = defaults.StartPrefix
		cfg.StartContains = defaults.StartContains
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = defaults.IDPrefix
	}
	return &StructuredChunker{
		targets:       toc.Targets(),
		startPrefix:   cfg.StartPrefix,
		startContains: cfg.StartContains,
		idPrefix:      cfg.IDPrefix,
		logger:        logger.With("component", "chunker", "mode", "structured"),
	}
}

// Name returns the chunker name.
func (c *StructuredChunker) Name() string {
	return "structured"
}

// Chunk implements Chunker.
func (c *StructuredChunker) Chunk(ctx context.Context, doc *document.Document) ([]models.Chunk, error) {
	result, err := c.ChunkWithReport(ctx, doc)
	if err != nil {
		return nil, err
	}
	return result.Chunks, nil
}

type located struct {
	Target
	index int
}

// ChunkWithReport chunks doc and reports missing and empty targets.
func (c *StructuredChunker) ChunkWithReport(ctx context.Context, doc *document.Document) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	paragraphs := c.contentParagraphs(doc.Paragraphs)
	result := &Result{}

	positions := make([]located, 0, len(c.targets))
	for _, target := range c.targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := findHeading(target, paragraphs)
		if idx < 0 {
			c.logger.Warn("section heading not found", "section", target.Number, "heading", target.Heading)
			result.Missing = append(result.Missing, target)
			continue
		}
		positions = append(positions, located{Target: target, index: idx})
	}

	for i, pos := range positions {
		start := pos.index + 1
		end := len(paragraphs)
		if i+1 < len(positions) {
			end = positions[i+1].index
		}
		var content string
		if start < end {
			content = strings.TrimSpace(strings.Join(paragraphs[start:end], "\n"))
		}
		if content == "" {
			c.logger.Warn("section has no content", "section", pos.Number)
			result.Empty = append(result.Empty, pos.Target)
			continue
		}
		result.Chunks = append(result.Chunks, models.Chunk{
			Metadata: models.ChunkMetadata{
				ChunkID:             c.idPrefix + pos.Number,
				SectionNumber:       pos.Number,
				Heading:             pos.Heading,
				ParentSectionNumber: pos.ParentNumber,
				ParentHeading:       pos.ParentHeading,
				CharLength:          len([]rune(content)),
				WordCount:           wordCount(content),
			},
			Content: content,
		})
	}

	sort.SliceStable(result.Chunks, func(i, j int) bool {
		return compareSectionNumbers(result.Chunks[i].Metadata.SectionNumber, result.Chunks[j].Metadata.SectionNumber) < 0
	})
	return result, nil
}

// contentParagraphs returns the trimmed non-empty paragraph texts from the
// start marker onwards.
func (c *StructuredChunker) contentParagraphs(paragraphs []document.Paragraph) []string {
	var (
		texts []string
		found bool
	)
	for _, p := range paragraphs {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		if !found && strings.HasPrefix(text, c.startPrefix) && strings.Contains(text, c.startContains) {
			found = true
		}
		if found {
			texts = append(texts, text)
		}
	}
	return texts
}

// findHeading returns the index of the first paragraph starting with one of the
// accepted heading spellings, or -1.
func findHeading(target Target, paragraphs []string) int {
	patterns := []string{
		target.Number + ". " + target.Heading,
		target.Number + ".  " + target.Heading,
		target.Number + " " + target.Heading,
	}
	for i, p := range paragraphs {
		for _, pattern := range patterns {
			if strings.HasPrefix(p, pattern) {
				return i
			}
		}
	}
	return -1
}

func parseSectionNumber(number string) ([]int, error) {
	parts := strings.Split(number, ".")
	out := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid section number %q", number)
		}
		out[i] = n
	}
	return out, nil
}

// compareSectionNumbers orders dotted numbers numerically, so "10" sorts after "9.2".
func compareSectionNumbers(a, b string) int {
	pa, errA := parseSectionNumber(a)
	pb, errB := parseSectionNumber(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	return len(pa) - len(pb)
}
