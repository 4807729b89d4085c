// Package docx reads paragraphs and paragraph styles from Word (.docx) files.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/JS12540/evaluating-embedding-models/internal/document"
)

const (
	documentPart = "word/document.xml"
	stylesPart   = "word/styles.xml"
	defaultStyle = "Normal"
)

// Parser parses .docx files.
type Parser struct{}

// New creates a docx parser.
func New() *Parser {
	return &Parser{}
}

// Name returns the parser name.
func (p *Parser) Name() string {
	return "docx"
}

// SupportedExtensions returns the file extensions this parser handles.
func (p *Parser) SupportedExtensions() []string {
	return []string{".docx"}
}

// Register adds the docx parser to the default registry.
func Register() {
	document.DefaultRegistry.Register(New())
}

// Parse reads the body paragraphs of the document in order. Paragraphs inside
// tables and text boxes are not part of the body and are skipped.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) (*document.Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx container: %w", err)
	}

	var docFile, stylesFile *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case documentPart:
			docFile = f
		case stylesPart:
			stylesFile = f
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("docx container has no %s", documentPart)
	}

	styles := map[string]string{}
	if stylesFile != nil {
		styles, err = readStyles(stylesFile)
		if err != nil {
			return nil, err
		}
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", documentPart, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(ctx, rc, styles)
	if err != nil {
		return nil, err
	}
	return &document.Document{Paragraphs: paragraphs}, nil
}

type rawParagraph struct {
	text    strings.Builder
	styleID string
}

func readParagraphs(ctx context.Context, r io.Reader, styles map[string]string) ([]document.Paragraph, error) {
	decoder := xml.NewDecoder(r)
	var (
		stack      []string
		current    *rawParagraph
		paraDepth  = -1
		inText     bool
		paragraphs []document.Paragraph
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			switch {
			case name == "p" && parent == "body" && current == nil:
				current = &rawParagraph{}
				paraDepth = len(stack)
			case current != nil && name == "pStyle" && parent == "pPr" && len(stack) == paraDepth+2:
				current.styleID = attr(t, "val")
			case current != nil && isRunChild(stack, paraDepth):
				switch name {
				case "t":
					inText = true
				case "tab":
					current.text.WriteByte('\t')
				case "br", "cr":
					current.text.WriteByte('\n')
				}
			}
			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if t.Name.Local == "t" {
				inText = false
			}
			if current != nil && t.Name.Local == "p" && len(stack) == paraDepth {
				paragraphs = append(paragraphs, document.NewParagraph(current.text.String(), styleName(current.styleID, styles)))
				current = nil
				paraDepth = -1
			}

		case xml.CharData:
			if current != nil && inText {
				current.text.Write(t)
			}
		}
	}
	return paragraphs, nil
}

// isRunChild reports whether the element about to be pushed is a direct child of a
// run that belongs to the current paragraph, either directly or through a hyperlink.
func isRunChild(stack []string, paraDepth int) bool {
	n := len(stack)
	if n == 0 || stack[n-1] != "r" {
		return false
	}
	switch n - 1 {
	case paraDepth + 1:
		return true
	case paraDepth + 2:
		return stack[paraDepth+1] == "hyperlink"
	}
	return false
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

type stylesXML struct {
	Styles []struct {
		Type    string `xml:"type,attr"`
		StyleID string `xml:"styleId,attr"`
		Default string `xml:"default,attr"`
		Name    struct {
			Val string `xml:"val,attr"`
		} `xml:"name"`
	} `xml:"style"`
}

const defaultKey = ""

func readStyles(f *zip.File) (map[string]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", stylesPart, err)
	}
	defer rc.Close()

	var parsed stylesXML
	if err := xml.NewDecoder(rc).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", stylesPart, err)
	}
	styles := make(map[string]string, len(parsed.Styles))
	for _, s := range parsed.Styles {
		if s.Type != "" && s.Type != "paragraph" {
			continue
		}
		name := displayName(s.Name.Val)
		if name == "" {
			continue
		}
		styles[s.StyleID] = name
		if s.Default == "1" || s.Default == "true" {
			styles[defaultKey] = name
		}
	}
	return styles, nil
}

var headingIDRegex = regexp.MustCompile(`^Heading(\d+)$`)

// styleName resolves a paragraph's style id to its display name.
func styleName(id string, styles map[string]string) string {
	if name, ok := styles[id]; ok {
		return name
	}
	if id == "" {
		return defaultStyle
	}
	if m := headingIDRegex.FindStringSubmatch(id); m != nil {
		return "Heading " + m[1]
	}
	return id
}

// displayName maps Word's lowercase built-in style names ("heading 1") to the
// names shown in the UI ("Heading 1").
func displayName(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	for _, builtin := range []string{"heading", "title", "subtitle", "caption", "normal"} {
		if lower == builtin || strings.HasPrefix(lower, builtin+" ") {
			return strings.ToUpper(name[:1]) + name[1:]
		}
	}
	return name
}
