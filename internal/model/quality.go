package model

// QualityReport summarizes a loaded corpus for operators.
type QualityReport struct {
	TotalRows          int     `json:"total_rows"`
	LoadedRecords      int     `json:"loaded_records"`
	SkippedRows        int     `json:"skipped_rows"`
	MissingQuestions   int     `json:"missing_questions"`
	MissingAnswers     int     `json:"missing_answers"`
	UniqueQuestions    int     `json:"unique_questions"`
	DuplicateQuestions int     `json:"duplicate_questions"`
	AvgQuestionLen     float64 `json:"avg_question_len"`
	AvgAnswerLen       float64 `json:"avg_answer_len"`
}
