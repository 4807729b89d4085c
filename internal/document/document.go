// Package document turns source files into an ordered list of paragraphs
// with heading levels, the input both chunkers work from.
package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// UnparseableHeading is the Level of a paragraph whose style names a heading
// without a usable level, such as "Heading" or "Heading X".
const UnparseableHeading = -1

// Paragraph is one block of text with its style.
type Paragraph struct {
	Text  string
	Style string

	// Level is 0 for body text, 1..9 for headings, UnparseableHeading otherwise.
	Level int
}

// IsHeading reports whether the paragraph opens a section.
func (p Paragraph) IsHeading() bool {
	return p.Level > 0
}

// Document is a parsed source file.
type Document struct {
	Name       string
	Paragraphs []Paragraph
}

// Parser extracts paragraphs from one document format.
type Parser interface {
	// Parse reads the raw document bytes.
	Parse(ctx context.Context, reader io.Reader) (*Document, error)

	// Name returns the parser name for logging and debugging.
	Name() string

	// SupportedExtensions returns the file extensions this parser can handle.
	SupportedExtensions() []string
}

// HeadingLevel derives a paragraph level from a display style name such as
// "Heading 2". Styles that do not start with "Heading" are body text.
func HeadingLevel(style string) int {
	if !strings.HasPrefix(style, "Heading") {
		return 0
	}
	parts := strings.Split(style, " ")
	if len(parts) < 2 {
		return UnparseableHeading
	}
	level, err := strconv.Atoi(parts[1])
	if err != nil || level <= 0 {
		return UnparseableHeading
	}
	return level
}

// NewParagraph builds a paragraph with NFC-normalised text and a level derived from style.
func NewParagraph(text, style string) Paragraph {
	return Paragraph{
		Text:  norm.NFC.String(text),
		Style: style,
		Level: HeadingLevel(style),
	}
}

// Registry manages available parsers keyed by file extension.
type Registry struct {
	mu           sync.RWMutex
	parsersByExt map[string]Parser
}

// NewRegistry creates a new parser registry.
func NewRegistry() *Registry {
	return &Registry{parsersByExt: make(map[string]Parser)}
}

// Register adds a parser for all its supported extensions.
func (r *Registry) Register(parser Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range parser.SupportedExtensions() {
		r.parsersByExt[normalizeExt(ext)] = parser
	}
}

// GetByExtension returns the parser for a given file extension.
func (r *Registry) GetByExtension(ext string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parser, ok := r.parsersByExt[normalizeExt(ext)]
	if !ok {
		return nil, fmt.Errorf("no parser for extension %q", ext)
	}
	return parser, nil
}

// ParseFile opens path and parses it with the parser registered for its extension.
func (r *Registry) ParseFile(ctx context.Context, path string) (*Document, error) {
	parser, err := r.GetByExtension(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc, err := parser.Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("parse %s with %s: %w", filepath.Base(path), parser.Name(), err)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// DefaultRegistry is the registry used by ParseFile. Format packages add themselves via Register.
var DefaultRegistry = NewRegistry()

// ParseFile parses path using the default registry.
func ParseFile(ctx context.Context, path string) (*Document, error) {
	return DefaultRegistry.ParseFile(ctx, path)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
