package repo

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seoulmedi/hosqa/internal/config"
	"github.com/seoulmedi/hosqa/internal/db"
	"github.com/seoulmedi/hosqa/internal/model"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres tests")
	}
	port := 5432
	if v := os.Getenv("TEST_DB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		require.NoError(t, err)
		port = p
	}
	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     envDefault("TEST_DB_USER", "postgres"),
		Password: os.Getenv("TEST_DB_PASS"),
		DBName:   envDefault("TEST_DB_NAME", "hosqa_test"),
	}
	conn, err := db.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestRecordRepoReplaceAndList(t *testing.T) {
	conn := testDB(t)
	r := NewRecordRepo(conn)
	ctx := context.Background()

	first := []model.SourceRecord{
		{ID: 0, Question: "진료시간이 어떻게 되나요?", Answer: "평일 9시부터 18시까지입니다.", Category: "안내", Metadata: map[string]string{"source": "hospital_qa", "index": "0"}},
		{ID: 1, Question: "주차가 가능한가요?", Answer: "지하 주차장을 이용하실 수 있습니다.", Category: "안내", Metadata: map[string]string{"source": "hospital_qa", "index": "1"}},
	}
	require.NoError(t, r.ReplaceAll(ctx, first))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Equal(t, first, got)

	count, err := r.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	second := first[:1]
	require.NoError(t, r.ReplaceAll(ctx, second))
	got, err = r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, first[0], got[0])
}

func TestRecordRepoReplaceAllRejectsDuplicateIDs(t *testing.T) {
	conn := testDB(t)
	r := NewRecordRepo(conn)
	ctx := context.Background()

	dupes := []model.SourceRecord{
		{ID: 7, Question: "진료시간이 어떻게 되나요?", Answer: "평일 9시부터입니다.", Category: "안내"},
		{ID: 7, Question: "면회시간이 어떻게 되나요?", Answer: "오후 8시까지입니다.", Category: "안내"},
	}
	err := r.ReplaceAll(ctx, dupes)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate record id")
}

func TestChunkRepoSnapshotRoundTrip(t *testing.T) {
	conn := testDB(t)
	r := NewChunkRepo(conn)
	ctx := context.Background()

	metaA := model.SnapshotMeta{SnapshotID: "snap-a", CorpusHash: "hash-a", Dim: 4, ChunkCount: 2, BuiltAt: time.Now().Unix()}
	entriesA := []model.EmbeddedChunk{
		{Chunk: model.Chunk{ChunkID: 1, SourceID: 0, Text: "첫 번째 청크", StartOffset: 0, EndOffset: 6}, Vector: []float32{1, 0, 0, 0}},
		{Chunk: model.Chunk{ChunkID: 2, SourceID: 0, Text: "두 번째 청크", StartOffset: 4, EndOffset: 10}, Vector: []float32{0, 1, 0, 0}},
	}
	require.NoError(t, r.SaveSnapshot(ctx, metaA, entriesA))

	meta, entries, err := r.LoadLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, metaA, *meta)
	require.Equal(t, entriesA, entries)

	metaB := model.SnapshotMeta{SnapshotID: "snap-b", CorpusHash: "hash-b", Dim: 4, ChunkCount: 1, BuiltAt: time.Now().Unix() + 1}
	entriesB := []model.EmbeddedChunk{
		{Chunk: model.Chunk{ChunkID: 3, SourceID: 1, Text: "새 청크", StartOffset: 0, EndOffset: 4}, Vector: []float32{0, 0, 1, 0}},
	}
	require.NoError(t, r.SaveSnapshot(ctx, metaB, entriesB))

	meta, entries, err = r.LoadLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, "snap-b", meta.SnapshotID)
	require.Equal(t, entriesB, entries)
}

func TestEmbeddingCacheRepo(t *testing.T) {
	conn := testDB(t)
	r := NewEmbeddingCacheRepo(conn)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `DELETE FROM embedding_cache`)
	require.NoError(t, err)

	_, ok, err := r.Get(ctx, "test-model", "RETRIEVAL_DOCUMENT", "hash-1")
	require.NoError(t, err)
	require.False(t, ok)

	now := time.Now().Unix()
	require.NoError(t, r.Save(ctx, &model.CachedEmbedding{
		ModelName:   "test-model",
		TaskType:    "RETRIEVAL_DOCUMENT",
		ContentHash: "hash-1",
		Embedding:   []float32{0.25, -0.5, 0.75},
		Ctime:       now,
	}))

	vec, ok, err := r.Get(ctx, "test-model", "RETRIEVAL_DOCUMENT", "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.25, -0.5, 0.75}, vec)

	removed, err := r.DeleteBefore(ctx, now+1)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err = r.Get(ctx, "test-model", "RETRIEVAL_DOCUMENT", "hash-1")
	require.NoError(t, err)
	require.False(t, ok)
}
