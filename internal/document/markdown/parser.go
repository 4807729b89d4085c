// Package markdown reads ATX headings and blank-line separated paragraphs
// from Markdown files.
package markdown

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JS12540/evaluating-embedding-models/internal/document"
)

// Parser parses Markdown documents.
type Parser struct{}

// New creates a markdown parser.
func New() *Parser {
	return &Parser{}
}

// Name returns the parser name.
func (p *Parser) Name() string {
	return "markdown"
}

// SupportedExtensions returns the file extensions this parser handles.
func (p *Parser) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// Register adds the markdown parser to the default registry.
func Register() {
	document.DefaultRegistry.Register(New())
}

var headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+?)(?:\s+#+)?\s*$`)

// Parse splits the document into paragraphs. Frontmatter is stripped; its title,
// when present, becomes the document name.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) (*document.Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	frontmatter, body := extractFrontmatter(string(data))

	doc := &document.Document{}
	if frontmatter != "" {
		var meta struct {
			Title string `yaml:"title"`
		}
		if err := yaml.Unmarshal([]byte(frontmatter), &meta); err == nil {
			doc.Name = strings.TrimSpace(meta.Title)
		}
	}

	var pending []string
	flush := func() {
		if len(pending) == 0 {
			return
		}
		doc.Paragraphs = append(doc.Paragraphs, document.NewParagraph(strings.Join(pending, " "), "Normal"))
		pending = pending[:0]
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if m := headingRegex.FindStringSubmatch(trimmed); m != nil {
			flush()
			doc.Paragraphs = append(doc.Paragraphs, document.NewParagraph(m[2], fmt.Sprintf("Heading %d", len(m[1]))))
			continue
		}
		pending = append(pending, trimmed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan markdown: %w", err)
	}
	flush()
	return doc, nil
}

// extractFrontmatter separates YAML frontmatter from the document body.
// Frontmatter must be at the start of the document, delimited by "---".
func extractFrontmatter(content string) (frontmatter, body string) {
	trimmed := strings.TrimLeft(content, "\ufeff \t\r\n")
	if !strings.HasPrefix(trimmed, "---") {
		return "", content
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 3 {
		return "", content
	}
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "---" || line == "..." {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n")
		}
	}
	return "", content
}
