package vecindex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seoulmedi/hosqa/internal/model"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

func embedded(chunkID, sourceID int64, text string, vec []float32) model.EmbeddedChunk {
	return model.EmbeddedChunk{
		Chunk:  model.Chunk{ChunkID: chunkID, SourceID: sourceID, Text: text, EndOffset: len(text)},
		Vector: vec,
	}
}

func TestNewRejectsBadDim(t *testing.T) {
	_, err := New(0)
	require.True(t, errors.Is(err, apperr.ErrInvalidConfig))
	_, err = New(-3)
	require.True(t, errors.Is(err, apperr.ErrInvalidConfig))
}

func TestQueryOrdersByScore(t *testing.T) {
	idx, err := New(4)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(embedded(1, 1, "정확히 일치", []float32{1, 0, 0, 0})))
	require.NoError(t, idx.Insert(embedded(2, 2, "비슷함", []float32{0.9, 0.4, 0, 0})))
	require.NoError(t, idx.Insert(embedded(3, 3, "무관함", []float32{0, 0, 1, 0})))

	hits, err := idx.Query([]float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, int64(1), hits[0].Chunk.ChunkID)
	require.Equal(t, int64(2), hits[1].Chunk.ChunkID)
	require.Equal(t, int64(3), hits[2].Chunk.ChunkID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-5)
	require.Greater(t, hits[1].Score, hits[2].Score)
}

func TestQueryTopKLimits(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	for id := int64(1); id <= 5; id++ {
		require.NoError(t, idx.Insert(embedded(id, id, "항목", []float32{1, float32(id) / 10})))
	}
	hits, err := idx.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	hits, err = idx.Query([]float32{1, 0}, 50)
	require.NoError(t, err)
	require.Len(t, hits, 5)

	hits, err = idx.Query([]float32{1, 0}, 0)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestQueryTieBreaksOnChunkID(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(embedded(20, 2, "둘", []float32{0, 1, 0})))
	require.NoError(t, idx.Insert(embedded(10, 1, "하나", []float32{0, 1, 0})))

	hits, err := idx.Query([]float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, hits[0].Score, hits[1].Score)
	require.Equal(t, int64(10), hits[0].Chunk.ChunkID)
	require.Equal(t, int64(20), hits[1].Chunk.ChunkID)
}

func TestInsertOverwritesSameChunkID(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(embedded(7, 1, "이전", []float32{1, 0})))
	require.NoError(t, idx.Insert(embedded(7, 1, "갱신", []float32{0, 1})))
	require.Equal(t, 1, idx.Len())

	hits, err := idx.Query([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "갱신", hits[0].Chunk.Text)
	require.InDelta(t, 1.0, hits[0].Score, 1e-5)
}

func TestInsertDimensionMismatch(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	err = idx.Insert(embedded(1, 1, "짧음", []float32{1, 0}))
	require.True(t, errors.Is(err, apperr.ErrDimensionMismatch))
}

func TestQueryDimensionMismatch(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(embedded(1, 1, "항목", []float32{1, 0, 0})))
	_, err = idx.Query([]float32{1, 0}, 1)
	require.True(t, errors.Is(err, apperr.ErrDimensionMismatch))
}

func TestQueryZeroVectorMatchesNothing(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(embedded(1, 1, "항목", []float32{1, 0})))
	hits, err := idx.Query([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestQueryEmptyIndex(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	hits, err := idx.Query([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestEntriesInsertionOrder(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(embedded(5, 1, "가", []float32{1, 0})))
	require.NoError(t, idx.Insert(embedded(3, 1, "나", []float32{0, 1})))

	entries := idx.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, int64(5), entries[0].ChunkID)
	require.Equal(t, int64(3), entries[1].ChunkID)
}
