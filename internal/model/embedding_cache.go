package model

// CachedEmbedding is a persisted embedding keyed by model, task type
// and content hash.
type CachedEmbedding struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
