package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/seoulmedi/hosqa/internal/model"
	"github.com/seoulmedi/hosqa/internal/pkg/dbutil"
)

const recordInsertBatch = 200

// RecordRepo keeps the normalized corpus in Postgres so a rebuild can
// run even when the raw CSV is gone.
type RecordRepo struct {
	db *sql.DB
}

func NewRecordRepo(db *sql.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// ReplaceAll swaps the whole stored corpus in one transaction.
func (r *RecordRepo) ReplaceAll(ctx context.Context, records []model.SourceRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM qa_records`); err != nil {
		return err
	}
	now := time.Now().Unix()
	for start := 0; start < len(records); start += recordInsertBatch {
		end := start + recordInsertBatch
		if end > len(records) {
			end = len(records)
		}
		rows := make([]map[string]interface{}, 0, end-start)
		for _, rec := range records[start:end] {
			meta, err := json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("encode record metadata: %w", err)
			}
			rows = append(rows, map[string]interface{}{
				"id":       rec.ID,
				"question": rec.Question,
				"answer":   rec.Answer,
				"category": rec.Category,
				"metadata": string(meta),
				"ctime":    now,
			})
		}
		sqlStr, args, err := builder.BuildInsert("qa_records", rows)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			if dbutil.IsConflict(err) {
				return fmt.Errorf("duplicate record id in corpus batch [%d,%d): %w", start, end, err)
			}
			return err
		}
	}
	return tx.Commit()
}

// List returns the stored corpus ordered by record id.
func (r *RecordRepo) List(ctx context.Context) ([]model.SourceRecord, error) {
	const query = `
		SELECT id, question, answer, category, metadata
		FROM qa_records
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.SourceRecord, 0)
	for rows.Next() {
		var item model.SourceRecord
		var meta string
		if err := rows.Scan(&item.ID, &item.Question, &item.Answer, &item.Category, &meta); err != nil {
			return nil, err
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &item.Metadata); err != nil {
				return nil, fmt.Errorf("decode record metadata: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *RecordRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qa_records`).Scan(&count)
	return count, err
}
