package model

// RetrievalResult is one retrieved chunk with its similarity score in [0,1].
type RetrievalResult struct {
	Chunk    Chunk   `json:"chunk"`
	Score    float64 `json:"score"`
	SourceID int64   `json:"source_id"`
}

// AnswerResult is the full response to a question.
type AnswerResult struct {
	AnswerText string            `json:"answer_text"`
	Confidence float64           `json:"confidence"`
	Sources    []RetrievalResult `json:"sources"`
	LatencyMS  int64             `json:"latency_ms"`
	SnapshotID string            `json:"snapshot_id,omitempty"`
}
