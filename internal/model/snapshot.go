package model

// SnapshotMeta describes a persisted index generation.
type SnapshotMeta struct {
	SnapshotID string `json:"snapshot_id"`
	CorpusHash string `json:"corpus_hash"`
	Dim        int    `json:"dim"`
	ChunkCount int    `json:"chunk_count"`
	BuiltAt    int64  `json:"built_at"`
}
