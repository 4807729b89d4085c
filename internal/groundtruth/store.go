package groundtruth

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// Formats accepted by Write.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

var csvHeader = []string{"question_id", "question", "chunks", "rationale"}

// Skipped is a ground truth row that could not be parsed.
type Skipped struct {
	Line       int
	QuestionID string
	Err        error
}

func (s Skipped) String() string {
	if s.QuestionID != "" {
		return fmt.Sprintf("line %d (%s): %v", s.Line, s.QuestionID, s.Err)
	}
	return fmt.Sprintf("line %d: %v", s.Line, s.Err)
}

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSONL
}

// Write stores records at path in the given format, creating parent directories.
func Write(path, format string, records []models.GroundTruthRecord) error {
	if format == "" {
		format = FormatForPath(path)
	}
	var buf bytes.Buffer
	switch format {
	case FormatJSONL:
		if err := EncodeJSONL(&buf, records); err != nil {
			return err
		}
	case FormatCSV:
		if err := EncodeCSV(&buf, records); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown ground truth format %q", format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create ground truth directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write ground truth: %w", err)
	}
	return nil
}

// EncodeJSONL writes one JSON record per line.
func EncodeJSONL(w io.Writer, records []models.GroundTruthRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if r.Chunks == nil {
			r.Chunks = []models.ChunkRef{}
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode %s: %w", r.QuestionID, err)
		}
	}
	return nil
}

// EncodeCSV writes the legacy CSV layout with the chunks JSON-encoded in one cell.
func EncodeCSV(w io.Writer, records []models.GroundTruthRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		chunks, err := marshalNoEscape(r.Chunks)
		if err != nil {
			return fmt.Errorf("encode chunks of %s: %w", r.QuestionID, err)
		}
		if err := cw.Write([]string{r.QuestionID, r.Question, chunks, r.Rationale}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func marshalNoEscape(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	if out == "null" {
		out = "[]"
	}
	return out, nil
}

// Load reads ground truth from a .jsonl or .csv file. Rows that cannot be
// parsed are returned as Skipped and never fail the load.
func Load(path string) ([]models.GroundTruthRecord, []Skipped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open ground truth: %w", err)
	}
	defer f.Close()

	if FormatForPath(path) == FormatCSV {
		return DecodeCSV(f)
	}
	return DecodeJSONL(f)
}

// DecodeJSONL reads one record per non-blank line. Lines without a
// question_id or a chunks array are skipped.
func DecodeJSONL(r io.Reader) ([]models.GroundTruthRecord, []Skipped, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []models.GroundTruthRecord
	var skipped []Skipped
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec models.GroundTruthRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			skipped = append(skipped, Skipped{Line: line, QuestionID: peekQuestionID(text), Err: err})
			continue
		}
		if strings.TrimSpace(rec.QuestionID) == "" {
			skipped = append(skipped, Skipped{Line: line, Err: errors.New("missing question_id")})
			continue
		}
		if rec.Chunks == nil {
			skipped = append(skipped, Skipped{Line: line, QuestionID: rec.QuestionID, Err: errors.New("missing chunks")})
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read ground truth: %w", err)
	}
	return records, skipped, nil
}

func peekQuestionID(text string) string {
	dec := json.NewDecoder(strings.NewReader(text))
	if _, err := dec.Token(); err != nil {
		return ""
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		key, ok := tok.(string)
		if !ok {
			return ""
		}
		if key == "question_id" {
			var id string
			if err := dec.Decode(&id); err != nil {
				return ""
			}
			return id
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return ""
		}
	}
	return ""
}

// DecodeCSV reads the legacy CSV layout. The chunks cell may hold JSON or a
// Python list literal.
func DecodeCSV(r io.Reader) ([]models.GroundTruthRecord, []Skipped, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read ground truth header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range csvHeader {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("ground truth csv is missing column %q", name)
		}
	}
	cell := func(row []string, name string) string {
		if i := columns[name]; i < len(row) {
			return row[i]
		}
		return ""
	}

	var records []models.GroundTruthRecord
	var skipped []Skipped
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped = append(skipped, Skipped{Line: parseErr.StartLine, Err: err})
				continue
			}
			return nil, nil, fmt.Errorf("read ground truth: %w", err)
		}
		line, _ := cr.FieldPos(0)

		rec := models.GroundTruthRecord{
			QuestionID: strings.TrimSpace(cell(row, "question_id")),
			Question:   cell(row, "question"),
			Rationale:  cell(row, "rationale"),
		}
		if len(row) < len(csvHeader) {
			skipped = append(skipped, Skipped{Line: line, QuestionID: rec.QuestionID, Err: fmt.Errorf("row has %d fields, want %d", len(row), len(csvHeader))})
			continue
		}
		chunks, err := ParseChunksCell(cell(row, "chunks"))
		if err != nil {
			skipped = append(skipped, Skipped{Line: line, QuestionID: rec.QuestionID, Err: err})
			continue
		}
		rec.Chunks = chunks
		records = append(records, rec)
	}
	return records, skipped, nil
}

// ParseChunksCell decodes a chunks cell written as JSON or as a Python list literal.
func ParseChunksCell(cell string) ([]models.ChunkRef, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, errors.New("empty chunks cell")
	}
	var chunks []models.ChunkRef
	if err := json.Unmarshal([]byte(cell), &chunks); err == nil {
		return chunks, nil
	}
	converted, err := PythonLiteralToJSON(cell)
	if err != nil {
		return nil, fmt.Errorf("parse chunks cell: %w", err)
	}
	if err := json.Unmarshal([]byte(converted), &chunks); err != nil {
		return nil, fmt.Errorf("parse chunks cell: %w", err)
	}
	return chunks, nil
}

// PythonLiteralToJSON rewrites a Python literal of lists, dicts, strings,
// numbers, True, False and None as JSON.
func PythonLiteralToJSON(s string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			value, next, err := readPythonString(s, i)
			if err != nil {
				return "", err
			}
			encoded, err := marshalNoEscape(value)
			if err != nil {
				return "", err
			}
			out.WriteString(encoded)
			i = next
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentStart(s[j]) {
				j++
			}
			switch word := s[i:j]; word {
			case "True":
				out.WriteString("true")
			case "False":
				out.WriteString("false")
			case "None":
				out.WriteString("null")
			default:
				return "", fmt.Errorf("unexpected identifier %q at offset %d", word, i)
			}
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func readPythonString(s string, start int) (string, int, error) {
	quote := s[start]
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(s[i])
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string at offset %d", start)
}
