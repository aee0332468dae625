package model

// Chunk is a window of a source document. Offsets are rune positions
// into the document text, end exclusive.
type Chunk struct {
	ChunkID     int64  `json:"chunk_id"`
	SourceID    int64  `json:"source_id"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// EmbeddedChunk is a chunk with its embedding vector attached.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"vector"`
}
