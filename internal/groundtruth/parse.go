package groundtruth

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// ErrNoJSONArray is returned when a model reply contains no parseable JSON array.
var ErrNoJSONArray = errors.New("unable to parse JSON array from model output")

var arrayPattern = regexp.MustCompile(`(?s)(\[.*\])`)

// ValidationError lists every record that does not match the ground truth schema.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid ground truth: %s", strings.Join(e.Issues, "; "))
}

// ExtractArray returns the raw JSON elements of the array in text. The whole
// text is tried first, then the outermost bracketed span.
func ExtractArray(text string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &items); err == nil {
		return items, nil
	}
	match := arrayPattern.FindStringSubmatch(text)
	if match == nil {
		return nil, ErrNoJSONArray
	}
	if err := json.Unmarshal([]byte(match[1]), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSONArray, err)
	}
	return items, nil
}

// ParseResponse extracts, validates and decodes the records in a model reply.
// Any invalid element fails the whole reply.
func ParseResponse(text string) ([]models.GroundTruthRecord, error) {
	items, err := ExtractArray(text)
	if err != nil {
		return nil, err
	}
	if err := Validate(items); err != nil {
		return nil, err
	}

	records := make([]models.GroundTruthRecord, len(items))
	for i, raw := range items {
		if err := json.Unmarshal(raw, &records[i]); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
	}
	return records, nil
}

var (
	recordSchemaOnce sync.Once
	recordSchema     *jsonschema.Schema
	recordSchemaErr  error
)

// RecordSchema returns the compiled JSON schema of one ground truth record.
func RecordSchema() (*jsonschema.Schema, error) {
	recordSchemaOnce.Do(func() {
		r := &invopop.Reflector{
			Anonymous:                  true,
			RequiredFromJSONSchemaTags: true,
			AllowAdditionalProperties:  true,
			DoNotReference:             true,
		}
		payload, err := json.Marshal(r.Reflect(&models.GroundTruthRecord{}))
		if err != nil {
			recordSchemaErr = fmt.Errorf("encode record schema: %w", err)
			return
		}
		recordSchema, recordSchemaErr = jsonschema.CompileString("ground_truth_record.json", string(payload))
	})
	return recordSchema, recordSchemaErr
}

// Validate checks every raw element against RecordSchema.
func Validate(items []json.RawMessage) error {
	schema, err := RecordSchema()
	if err != nil {
		return fmt.Errorf("compile record schema: %w", err)
	}

	var issues []string
	for i, raw := range items {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			issues = append(issues, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if err := schema.Validate(decoded); err != nil {
			issues = append(issues, fmt.Sprintf("record %d%s: %s", i, recordLabel(decoded), schemaMessage(err)))
		}
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func recordLabel(decoded any) string {
	if obj, ok := decoded.(map[string]any); ok {
		if id, ok := obj["question_id"].(string); ok && id != "" {
			return " (" + id + ")"
		}
	}
	return ""
}

func schemaMessage(err error) string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	var leaves []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "/"
			}
			leaves = append(leaves, location+" "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(leaves, ", ")
}
