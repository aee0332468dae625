package eval

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/answer"
	"github.com/seoulmedi/hosqa/internal/corpus"
	"github.com/seoulmedi/hosqa/internal/model"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

// Report summarizes retrieval quality over an evaluation split.
// A question counts as a hit when a retrieved chunk traces back to a
// corpus record with the same normalized question text.
type Report struct {
	Questions      int     `json:"questions"`
	Evaluated      int     `json:"evaluated"`
	Top1Hits       int     `json:"top1_hits"`
	TopKHits       int     `json:"topk_hits"`
	NoResult       int     `json:"no_result"`
	Top1HitRate    float64 `json:"top1_hit_rate"`
	TopKHitRate    float64 `json:"topk_hit_rate"`
	MeanTopScore   float64 `json:"mean_top_score"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// retrievalSource is the slice of the pipeline the evaluator needs.
type retrievalSource interface {
	Retrieve(ctx context.Context, question string, topK int, threshold float64) ([]model.RetrievalResult, error)
	Records() []model.SourceRecord
}

// Run retrieves every evaluation question against the current index
// and scores the results. Evaluation questions without a counterpart
// in the indexed corpus are skipped, they have no ground truth to hit.
func Run(ctx context.Context, src retrievalSource, rows []model.SourceRecord, topK int, threshold float64) (*Report, error) {
	records := src.Records()
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: corpus records unavailable, build the index first", apperr.ErrNotReady)
	}
	truth := make(map[string]map[int64]struct{}, len(records))
	for _, rec := range records {
		q := corpus.Normalize(rec.Question)
		if truth[q] == nil {
			truth[q] = map[int64]struct{}{}
		}
		truth[q][rec.ID] = struct{}{}
	}

	report := &Report{Questions: len(rows)}
	var scoreSum, confidenceSum float64
	for _, row := range rows {
		expected := truth[corpus.Normalize(row.Question)]
		if len(expected) == 0 {
			continue
		}
		report.Evaluated++
		results, err := src.Retrieve(ctx, row.Question, topK, threshold)
		if err != nil {
			return nil, fmt.Errorf("retrieve %q: %w", row.Question, err)
		}
		if len(results) == 0 {
			report.NoResult++
			continue
		}
		scoreSum += results[0].Score
		confidenceSum += answer.Confidence(results)
		if _, ok := expected[results[0].SourceID]; ok {
			report.Top1Hits++
			report.TopKHits++
			continue
		}
		for _, res := range results[1:] {
			if _, ok := expected[res.SourceID]; ok {
				report.TopKHits++
				break
			}
		}
	}
	if report.Evaluated > 0 {
		report.Top1HitRate = float64(report.Top1Hits) / float64(report.Evaluated)
		report.TopKHitRate = float64(report.TopKHits) / float64(report.Evaluated)
	}
	if answered := report.Evaluated - report.NoResult; answered > 0 {
		report.MeanTopScore = scoreSum / float64(answered)
		report.MeanConfidence = confidenceSum / float64(answered)
	}
	logutil.GetLogger(ctx).Info("evaluation finished",
		zap.Int("questions", report.Questions),
		zap.Int("evaluated", report.Evaluated),
		zap.Float64("top1_hit_rate", report.Top1HitRate),
		zap.Float64("topk_hit_rate", report.TopKHitRate),
		zap.Float64("mean_top_score", report.MeanTopScore))
	return report, nil
}
