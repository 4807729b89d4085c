package chunker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JS12540/evaluating-embedding-models/internal/document"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// RecursiveChunker builds a section tree from heading levels and splits each
// section's body into overlapping character windows.
type RecursiveChunker struct {
	size    int
	overlap int
}

// NewRecursive creates a recursive chunker.
func NewRecursive(cfg Config) (*RecursiveChunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RecursiveChunker{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}, nil
}

// Name returns the chunker name.
func (c *RecursiveChunker) Name() string {
	return "recursive"
}

type section struct {
	heading     string
	level       int
	content     strings.Builder
	subsections []*section
}

// Chunk walks the section tree depth-first. Chunk ids come from a single
// counter across the whole document.
func (c *RecursiveChunker) Chunk(ctx context.Context, doc *document.Document) ([]models.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	tree := buildTree(doc.Paragraphs)

	var (
		chunks  []models.Chunk
		counter int
	)
	var walk func(nodes []*section, parentNumber, parentHeading *string) error
	walk = func(nodes []*section, parentNumber, parentHeading *string) error {
		for i, node := range nodes {
			if err := ctx.Err(); err != nil {
				return err
			}
			content := node.content.String()
			if strings.TrimSpace(content) == "" && len(node.subsections) == 0 {
				continue
			}

			number := strconv.Itoa(i + 1)
			if parentNumber != nil {
				number = *parentNumber + "." + number
			}

			for j, window := range SplitWindows(content, c.size, c.overlap) {
				counter++
				chunks = append(chunks, models.Chunk{
					Metadata: models.ChunkMetadata{
						ChunkID:             "chunk_" + strconv.Itoa(counter),
						SectionNumber:       number,
						SubchunkNumber:      j + 1,
						Heading:             node.heading,
						ParentSectionNumber: parentNumber,
						ParentHeading:       parentHeading,
						CharLength:          len([]rune(window)),
						WordCount:           wordCount(window),
					},
					Content: strings.TrimSpace(window),
				})
			}

			if len(node.subsections) > 0 {
				if err := walk(node.subsections, models.StringPtr(number), models.StringPtr(node.heading)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(tree, nil, nil); err != nil {
		return nil, err
	}
	return chunks, nil
}

// buildTree nests sections using a heading stack. Body text before the first
// heading has no section and is dropped.
func buildTree(paragraphs []document.Paragraph) []*section {
	var (
		roots []*section
		stack []*section
	)
	for _, p := range paragraphs {
		switch {
		case p.Level == document.UnparseableHeading:
			continue
		case p.IsHeading():
			node := &section{heading: strings.TrimSpace(p.Text), level: p.Level}
			for len(stack) > 0 && stack[len(stack)-1].level >= p.Level {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				roots = append(roots, node)
			} else {
				parent := stack[len(stack)-1]
				parent.subsections = append(parent.subsections, node)
			}
			stack = append(stack, node)
		default:
			text := strings.TrimSpace(p.Text)
			if text == "" || len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			top.content.WriteString(text)
			top.content.WriteByte('\n')
		}
	}
	return roots
}

// SplitWindows cuts text into rune windows of size, each starting
// size-overlap runes after the previous one, until the start passes the end.
// Callers must ensure 0 <= overlap < size.
func SplitWindows(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step <= 0 {
		return nil
	}
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}
