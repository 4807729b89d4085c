// Package toon writes Token-Oriented Object Notation, a compact tabular text
// form used to hand large record sets to an LLM with fewer tokens than JSON.
//
// Only the two shapes the labelling prompt needs are supported: a uniform
// table of records and a flat ordered map.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	delimiter = ','
	indent    = "  "
)

// EncodeTable encodes rows as a tabular array:
//
//	name[2]{id,text}:
//	  c1,hello
//	  c2,"a, b"
//
// Every row must have exactly len(fields) values.
func EncodeTable(name string, fields []string, rows [][]string) (string, error) {
	var b strings.Builder
	b.WriteString(encodeKey(name))
	b.WriteString("[")
	b.WriteString(strconv.Itoa(len(rows)))
	b.WriteString("]{")
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(delimiter)
		}
		b.WriteString(encodeKey(f))
	}
	b.WriteString("}:")
	for i, row := range rows {
		if len(row) != len(fields) {
			return "", fmt.Errorf("row %d has %d values, want %d", i, len(row), len(fields))
		}
		b.WriteByte('\n')
		b.WriteString(indent)
		for j, v := range row {
			if j > 0 {
				b.WriteByte(delimiter)
			}
			b.WriteString(Quote(v))
		}
	}
	return b.String(), nil
}

// EncodeMap encodes values as "key: value" lines in the given key order.
// Keys missing from values are skipped.
func EncodeMap(values map[string]string, order []string) string {
	lines := make([]string, 0, len(order))
	for _, key := range order {
		v, ok := values[key]
		if !ok {
			continue
		}
		lines = append(lines, encodeKey(key)+": "+Quote(v))
	}
	return strings.Join(lines, "\n")
}

var (
	numericLike = regexp.MustCompile(`^-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?$`)
	leadingZero = regexp.MustCompile(`^0\d+$`)
	bareKey     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// Quote returns s unchanged when it can appear bare, and a double-quoted,
// escaped string otherwise.
func Quote(s string) string {
	if !needsQuote(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuote(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return true
	}
	switch s {
	case "true", "false", "null":
		return true
	}
	if numericLike.MatchString(s) || leadingZero.MatchString(s) {
		return true
	}
	if strings.HasPrefix(s, "-") {
		return true
	}
	for _, r := range s {
		switch {
		case r == delimiter, r == ':', r == '"', r == '\\',
			r == '[', r == ']', r == '{', r == '}':
			return true
		case r < 0x20 || r == 0x7f:
			return true
		}
	}
	return false
}

func encodeKey(key string) string {
	if key == "" || bareKey.MatchString(key) {
		return key
	}
	return Quote(key)
}
