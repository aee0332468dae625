package retriever

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/ai"
	"github.com/seoulmedi/hosqa/internal/corpus"
	"github.com/seoulmedi/hosqa/internal/model"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
	"github.com/seoulmedi/hosqa/internal/vecindex"
)

// Retriever embeds questions and pulls the closest chunks out of an
// index snapshot. It holds no snapshot itself, the caller passes the
// one it is serving.
type Retriever struct {
	embedder ai.IEmbedder
	dim      int
}

func New(embedder ai.IEmbedder, dim int) *Retriever {
	return &Retriever{embedder: embedder, dim: dim}
}

// Retrieve returns up to topK chunks scoring at or above threshold,
// ranked by descending similarity. Questions are normalized the same
// way corpus text was so the embedding spaces line up. Reported
// scores are clamped to [0,1].
func (r *Retriever) Retrieve(ctx context.Context, idx *vecindex.Index, question string, topK int, threshold float64) ([]model.RetrievalResult, error) {
	normalized := corpus.Normalize(question)
	if normalized == "" {
		return nil, nil
	}
	vectors, err := r.embedder.Embed(ctx, []string{normalized}, ai.TaskQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for one question", apperr.ErrEmbedUnavailable, len(vectors))
	}
	if len(vectors[0]) != r.dim {
		return nil, fmt.Errorf("%w: question embedding has dimension %d, expected %d",
			apperr.ErrDimensionMismatch, len(vectors[0]), r.dim)
	}
	hits, err := idx.Query(vectors[0], topK)
	if err != nil {
		return nil, err
	}
	results := make([]model.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		if h.Score < threshold {
			break
		}
		results = append(results, model.RetrievalResult{
			Chunk:    h.Chunk,
			Score:    clamp01(h.Score),
			SourceID: h.Chunk.SourceID,
		})
	}
	logutil.GetLogger(ctx).Debug("retrieval done",
		zap.Int("candidates", len(hits)),
		zap.Int("retained", len(results)),
		zap.Float64("threshold", threshold))
	return results, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
