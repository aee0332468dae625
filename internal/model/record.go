package model

import "fmt"

// SourceRecord is one question/answer pair from the hospital corpus.
type SourceRecord struct {
	ID       int64             `json:"id"`
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Category string            `json:"category"`
	Metadata map[string]string `json:"metadata"`
}

// Document renders the record as the text that gets chunked and embedded.
func (r *SourceRecord) Document() string {
	return fmt.Sprintf("질문: %s\n답변: %s", r.Question, r.Answer)
}
