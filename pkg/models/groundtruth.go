package models

// GroundTruthRecord is one labelled question with the chunks that answer it.
type GroundTruthRecord struct {
	QuestionID string     `json:"question_id" jsonschema:"required,minLength=1"`
	Question   string     `json:"question" jsonschema:"required"`
	Chunks     []ChunkRef `json:"chunks" jsonschema:"required"`
	Rationale  string     `json:"rationale" jsonschema:"required"`
}

// RelevantIDs returns the de-duplicated relevant chunk ids in first-seen order.
func (r GroundTruthRecord) RelevantIDs() []string {
	seen := make(map[string]struct{}, len(r.Chunks))
	ids := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		if c.ChunkID == "" {
			continue
		}
		if _, ok := seen[c.ChunkID]; ok {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		ids = append(ids, c.ChunkID)
	}
	return ids
}

// Question is a natural-language question to be labelled.
type Question struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}
