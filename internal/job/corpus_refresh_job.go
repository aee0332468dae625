package job

import (
	"context"

	"github.com/xxxsen/common/logutil"

	"github.com/seoulmedi/hosqa/internal/pipeline"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

// CorpusRefreshJob rebuilds the index from the corpus source so answers
// pick up edits without a restart. Serving continues on the old snapshot
// while the rebuild runs.
type CorpusRefreshJob struct {
	pipeline *pipeline.Pipeline
}

func NewCorpusRefreshJob(p *pipeline.Pipeline) *CorpusRefreshJob {
	return &CorpusRefreshJob{pipeline: p}
}

func (j *CorpusRefreshJob) Name() string {
	return "corpus_refresh"
}

func (j *CorpusRefreshJob) Run(ctx context.Context) error {
	if j.pipeline == nil {
		return nil
	}
	err := j.pipeline.Build(ctx)
	if apperr.IsConflict(err) {
		logutil.GetLogger(ctx).Info("corpus refresh skipped: build already running")
		return nil
	}
	return err
}
