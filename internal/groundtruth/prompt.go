package groundtruth

import (
	"fmt"

	"github.com/JS12540/evaluating-embedding-models/internal/toon"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// SystemPrompt instructs the labelling model.
const SystemPrompt = "You are a precise dataset-labeling assistant. " +
	"You must identify which documentation chunks directly and explicitly answer each question. " +
	"Do NOT guess or infer. Select only chunks that clearly answer the question. " +
	"Return strictly valid JSON (no prose or markdown)."

const userTemplate = `
You are given the following Acme documentation in TOON format.

<CONTEXT_CHUNKS_TOON>
%s
</CONTEXT_CHUNKS_TOON>

<QUESTIONS_TOON>
%s
</QUESTIONS_TOON>

For each question:
- Identify only the relevant chunk IDs and texts that directly answer it.
- Return a JSON array of objects in this exact format:
[
  {
    "question_id": "Q1",
    "question": "Full question text",
    "chunks": [{"chunk_id": "chunk_97", "text": "..."}],
    "rationale": "Plain-English reasoning"
  },
  ...
]

Return only the JSON, no commentary.
`

// Refs reduces chunks to their {chunk_id, text} form.
func Refs(chunks []models.Chunk) []models.ChunkRef {
	refs := make([]models.ChunkRef, len(chunks))
	for i, c := range chunks {
		refs[i] = models.ChunkRef{ChunkID: c.ID(), Text: c.Content}
	}
	return refs
}

// BuildPrompt returns the system and user messages asking the model to label
// which chunks answer each question.
func BuildPrompt(chunks []models.ChunkRef, questions []models.Question) (string, string, error) {
	rows := make([][]string, len(chunks))
	for i, c := range chunks {
		rows[i] = []string{c.ChunkID, c.Text}
	}
	encodedChunks, err := toon.EncodeTable("chunks", []string{"chunk_id", "text"}, rows)
	if err != nil {
		return "", "", fmt.Errorf("encode chunks: %w", err)
	}

	values := make(map[string]string, len(questions))
	order := make([]string, len(questions))
	for i, q := range questions {
		values[q.ID] = q.Text
		order[i] = q.ID
	}
	encodedQuestions := toon.EncodeMap(values, order)

	return SystemPrompt, fmt.Sprintf(userTemplate, encodedChunks, encodedQuestions), nil
}
