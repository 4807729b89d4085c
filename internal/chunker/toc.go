package chunker

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed acme_toc.yaml
var acmeTOC []byte

// TOC is an ordered table of contents.
type TOC struct {
	Sections []TOCSection `yaml:"sections"`
}

// TOCSection is a numbered top-level section.
type TOCSection struct {
	Number      string     `yaml:"number"`
	Heading     string     `yaml:"heading"`
	Subsections []TOCEntry `yaml:"subsections"`
}

// TOCEntry is a numbered subsection.
type TOCEntry struct {
	Number  string `yaml:"number"`
	Heading string `yaml:"heading"`
}

// Target is one section the structured chunker looks for.
type Target struct {
	Number        string
	Heading       string
	ParentNumber  *string
	ParentHeading *string
}

// DefaultTOC returns the embedded Acme table of contents.
func DefaultTOC() TOC {
	toc, err := ParseTOC(acmeTOC)
	if err != nil {
		panic(fmt.Sprintf("embedded toc: %v", err))
	}
	return toc
}

// LoadTOC reads a table of contents from a YAML file.
func LoadTOC(path string) (TOC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TOC{}, fmt.Errorf("read toc: %w", err)
	}
	toc, err := ParseTOC(data)
	if err != nil {
		return TOC{}, fmt.Errorf("parse toc %s: %w", path, err)
	}
	return toc, nil
}

// ParseTOC decodes and validates a YAML table of contents.
func ParseTOC(data []byte) (TOC, error) {
	var toc TOC
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&toc); err != nil {
		return TOC{}, err
	}
	if len(toc.Sections) == 0 {
		return TOC{}, fmt.Errorf("toc has no sections")
	}
	seen := map[string]bool{}
	check := func(number, heading string) error {
		if strings.TrimSpace(number) == "" || strings.TrimSpace(heading) == "" {
			return fmt.Errorf("toc entry %q needs a number and a heading", number)
		}
		if _, err := parseSectionNumber(number); err != nil {
			return err
		}
		if seen[number] {
			return fmt.Errorf("toc section %q is duplicated", number)
		}
		seen[number] = true
		return nil
	}
	for _, s := range toc.Sections {
		if err := check(s.Number, s.Heading); err != nil {
			return TOC{}, err
		}
		for _, sub := range s.Subsections {
			if err := check(sub.Number, sub.Heading); err != nil {
				return TOC{}, err
			}
		}
	}
	return toc, nil
}

// Targets flattens the TOC. A section with subsections contributes only its
// subsections; a section without them contributes itself.
func (t TOC) Targets() []Target {
	var targets []Target
	for _, s := range t.Sections {
		if len(s.Subsections) == 0 {
			targets = append(targets, Target{Number: s.Number, Heading: s.Heading})
			continue
		}
		for _, sub := range s.Subsections {
			targets = append(targets, Target{
				Number:        sub.Number,
				Heading:       sub.Heading,
				ParentNumber:  &s.Number,
				ParentHeading: &s.Heading,
			})
		}
	}
	return targets
}
