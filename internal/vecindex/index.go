package vecindex

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/viant/vec/search"

	"github.com/seoulmedi/hosqa/internal/model"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

// Index answers kNN queries by scanning all entries and scoring with
// SIMD cosine similarity. A build populates it, after that the
// pipeline publishes it behind an atomic pointer and treats it as
// immutable. Magnitudes are precomputed on insert.
type Index struct {
	SnapshotID string
	CorpusHash string
	BuiltAt    time.Time

	dim    int
	ids    []int64
	chunks []model.Chunk
	vecs   [][]float32
	mags   []float32
	byID   map[int64]int
}

func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive, got %d", apperr.ErrInvalidConfig, dim)
	}
	return &Index{dim: dim, byID: map[int64]int{}}, nil
}

func (i *Index) Dim() int { return i.dim }

func (i *Index) Len() int { return len(i.ids) }

// Insert adds an embedded chunk. Re-inserting a chunk id overwrites
// the previous entry.
func (i *Index) Insert(ec model.EmbeddedChunk) error {
	if len(ec.Vector) != i.dim {
		return fmt.Errorf("%w: chunk %d has dimension %d, index wants %d",
			apperr.ErrDimensionMismatch, ec.ChunkID, len(ec.Vector), i.dim)
	}
	mag := search.Float32s(ec.Vector).Magnitude()
	if pos, ok := i.byID[ec.ChunkID]; ok {
		i.chunks[pos] = ec.Chunk
		i.vecs[pos] = ec.Vector
		i.mags[pos] = mag
		return nil
	}
	i.byID[ec.ChunkID] = len(i.ids)
	i.ids = append(i.ids, ec.ChunkID)
	i.chunks = append(i.chunks, ec.Chunk)
	i.vecs = append(i.vecs, ec.Vector)
	i.mags = append(i.mags, mag)
	return nil
}

// Hit is one scored index entry. Score is raw cosine similarity.
type Hit struct {
	Chunk model.Chunk
	Score float64
}

// Query returns the k most similar chunks ordered by descending
// score, ties broken toward the lower chunk id. An all-zero query has
// no direction and matches nothing.
func (i *Index) Query(query []float32, k int) ([]Hit, error) {
	if len(query) != i.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index wants %d",
			apperr.ErrDimensionMismatch, len(query), i.dim)
	}
	if len(i.ids) == 0 || k <= 0 {
		return nil, nil
	}
	qs := search.Float32s(query)
	qm := qs.Magnitude()
	if qm == 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(i.ids))
	for j := range i.vecs {
		if i.mags[j] == 0 {
			continue
		}
		score := 1 - float64(qs.CosineDistanceWithMagnitudesNeon(i.vecs[j], qm, i.mags[j]))
		if math.IsNaN(score) {
			continue
		}
		hits = append(hits, Hit{Chunk: i.chunks[j], Score: score})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Chunk.ChunkID < hits[b].Chunk.ChunkID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Entries lists the index contents in insertion order. Vectors are
// shared, callers must not mutate them.
func (i *Index) Entries() []model.EmbeddedChunk {
	out := make([]model.EmbeddedChunk, len(i.ids))
	for j := range i.ids {
		out[j] = model.EmbeddedChunk{Chunk: i.chunks[j], Vector: i.vecs[j]}
	}
	return out
}
