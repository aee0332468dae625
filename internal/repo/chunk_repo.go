package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pgvector/pgvector-go"

	"github.com/seoulmedi/hosqa/internal/model"
)

// ChunkRepo stores embedded chunks per index snapshot. Only the most
// recent snapshot is kept, it is enough to warm-start a restarted
// process without re-embedding the corpus.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// SaveSnapshot writes the snapshot row and its chunks, dropping every
// older snapshot in the same transaction.
func (r *ChunkRepo) SaveSnapshot(ctx context.Context, meta model.SnapshotMeta, entries []model.EmbeddedChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_embeddings`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_snapshots`); err != nil {
		return err
	}
	const metaQuery = `
		INSERT INTO index_snapshots (snapshot_id, corpus_hash, dim, chunk_count, built_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, metaQuery,
		meta.SnapshotID, meta.CorpusHash, meta.Dim, meta.ChunkCount, meta.BuiltAt); err != nil {
		return err
	}
	const chunkQuery = `
		INSERT INTO chunk_embeddings (snapshot_id, chunk_id, source_id, start_offset, end_offset, chunk_text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	stmt, err := tx.PrepareContext(ctx, chunkQuery)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, ec := range entries {
		if _, err := stmt.ExecContext(ctx,
			meta.SnapshotID,
			ec.ChunkID,
			ec.SourceID,
			ec.StartOffset,
			ec.EndOffset,
			ec.Text,
			pgvector.NewVector(ec.Vector),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadLatest returns the stored snapshot with its chunks, or nil when
// nothing has been persisted yet.
func (r *ChunkRepo) LoadLatest(ctx context.Context) (*model.SnapshotMeta, []model.EmbeddedChunk, error) {
	const metaQuery = `
		SELECT snapshot_id, corpus_hash, dim, chunk_count, built_at
		FROM index_snapshots
		ORDER BY built_at DESC
		LIMIT 1
	`
	var meta model.SnapshotMeta
	err := r.db.QueryRowContext(ctx, metaQuery).Scan(
		&meta.SnapshotID, &meta.CorpusHash, &meta.Dim, &meta.ChunkCount, &meta.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	const chunkQuery = `
		SELECT chunk_id, source_id, start_offset, end_offset, chunk_text, embedding
		FROM chunk_embeddings
		WHERE snapshot_id = $1
		ORDER BY chunk_id ASC
	`
	rows, err := r.db.QueryContext(ctx, chunkQuery, meta.SnapshotID)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()
	entries := make([]model.EmbeddedChunk, 0, meta.ChunkCount)
	for rows.Next() {
		var ec model.EmbeddedChunk
		var vec pgvector.Vector
		if err := rows.Scan(&ec.ChunkID, &ec.SourceID, &ec.StartOffset, &ec.EndOffset, &ec.Text, &vec); err != nil {
			return nil, nil, err
		}
		ec.Vector = vec.Slice()
		entries = append(entries, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &meta, entries, nil
}
