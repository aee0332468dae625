package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seoulmedi/hosqa/internal/model"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

type fakeSource struct {
	records []model.SourceRecord
	results map[string][]model.RetrievalResult
}

func (f *fakeSource) Retrieve(ctx context.Context, question string, topK int, threshold float64) ([]model.RetrievalResult, error) {
	return f.results[question], nil
}

func (f *fakeSource) Records() []model.SourceRecord { return f.records }

func hit(sourceID int64, score float64) model.RetrievalResult {
	return model.RetrievalResult{
		Chunk:    model.Chunk{ChunkID: sourceID << 20, SourceID: sourceID},
		Score:    score,
		SourceID: sourceID,
	}
}

func TestRunScoresHits(t *testing.T) {
	src := &fakeSource{
		records: []model.SourceRecord{
			{ID: 0, Question: "진료 시간이 어떻게 되나요?"},
			{ID: 1, Question: "예약 취소는 어떻게 하나요?"},
			{ID: 2, Question: "주차장이 있나요?"},
		},
		results: map[string][]model.RetrievalResult{
			"진료 시간이 어떻게 되나요?": {hit(0, 0.9), hit(2, 0.4)},
			"예약 취소는 어떻게 하나요?": {hit(2, 0.8), hit(1, 0.7)},
			"주차장이 있나요?":        {},
		},
	}
	rows := src.records

	report, err := Run(context.Background(), src, rows, 3, 0.3)
	require.NoError(t, err)
	require.Equal(t, 3, report.Questions)
	require.Equal(t, 3, report.Evaluated)
	require.Equal(t, 1, report.Top1Hits)
	require.Equal(t, 2, report.TopKHits)
	require.Equal(t, 1, report.NoResult)
	require.InDelta(t, 1.0/3.0, report.Top1HitRate, 1e-9)
	require.InDelta(t, 2.0/3.0, report.TopKHitRate, 1e-9)
	require.InDelta(t, (0.9+0.8)/2.0, report.MeanTopScore, 1e-9)
	require.Greater(t, report.MeanConfidence, 0.0)
}

func TestRunSkipsUnknownQuestions(t *testing.T) {
	src := &fakeSource{
		records: []model.SourceRecord{{ID: 0, Question: "진료 시간이 어떻게 되나요?"}},
		results: map[string][]model.RetrievalResult{
			"진료 시간이 어떻게 되나요?": {hit(0, 0.95)},
		},
	}
	rows := []model.SourceRecord{
		{ID: 0, Question: "진료 시간이 어떻게 되나요?"},
		{ID: 1, Question: "완전히 새로운 질문입니다"},
	}

	report, err := Run(context.Background(), src, rows, 3, 0.3)
	require.NoError(t, err)
	require.Equal(t, 2, report.Questions)
	require.Equal(t, 1, report.Evaluated)
	require.Equal(t, 1, report.Top1Hits)
	require.InDelta(t, 1.0, report.Top1HitRate, 1e-9)
}

func TestRunRequiresRecords(t *testing.T) {
	src := &fakeSource{}
	_, err := Run(context.Background(), src, nil, 3, 0.3)
	require.ErrorIs(t, err, apperr.ErrNotReady)
}

func TestRunDuplicateQuestionsShareGroundTruth(t *testing.T) {
	src := &fakeSource{
		records: []model.SourceRecord{
			{ID: 0, Question: "예약 취소는 어떻게 하나요?"},
			{ID: 1, Question: "예약 취소는 어떻게 하나요?"},
		},
		results: map[string][]model.RetrievalResult{
			"예약 취소는 어떻게 하나요?": {hit(1, 0.85)},
		},
	}
	report, err := Run(context.Background(), src, src.records, 1, 0.3)
	require.NoError(t, err)
	require.Equal(t, 2, report.Top1Hits)
}
