package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/ai"
	"github.com/seoulmedi/hosqa/internal/corpus"
	"github.com/seoulmedi/hosqa/internal/model"
	"github.com/seoulmedi/hosqa/internal/pkg/backoff"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
	"github.com/seoulmedi/hosqa/internal/vecindex"
)

const embedBatchSize = 64

// Build loads the corpus, chunks and embeds it, then installs the new
// index with an atomic swap. While a rebuild runs, queries keep being
// served from the previous snapshot. A failed first build leaves the
// pipeline in StateFailed until an operator triggers another build, a
// failed rebuild keeps the old snapshot and stays ready.
func (p *Pipeline) Build(ctx context.Context) error {
	if !p.buildMu.TryLock() {
		return fmt.Errorf("%w: another build is already running", apperr.ErrConflict)
	}
	defer p.buildMu.Unlock()

	if prev := p.State(); prev == StateReady || prev == StateRebuilding {
		p.state.Store(int32(StateRebuilding))
	} else {
		p.state.Store(int32(StateBuilding))
	}
	logger := logutil.GetLogger(ctx)
	start := time.Now()

	snap, err := p.buildSnapshot(ctx)
	if err != nil {
		if p.current.Load() != nil {
			p.state.Store(int32(StateReady))
			logger.Error("rebuild failed, keeping current snapshot", zap.Error(err))
		} else {
			p.state.Store(int32(StateFailed))
			logger.Error("index build failed", zap.Error(err))
		}
		return fmt.Errorf("%w: %w", apperr.ErrBuildFailed, err)
	}

	p.current.Store(snap)
	if p.answers != nil {
		p.answers.Purge()
	}
	p.state.Store(int32(StateReady))
	logger.Info("index build complete",
		zap.String("snapshot_id", snap.index.SnapshotID),
		zap.Int("records", len(snap.records)),
		zap.Int("chunks", snap.index.Len()),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (p *Pipeline) buildSnapshot(ctx context.Context) (*snapshot, error) {
	logger := logutil.GetLogger(ctx)

	records, quality, err := p.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	var chunks []model.Chunk
	for _, rec := range records {
		chunks = append(chunks, p.chk.Split(rec)...)
	}
	logger.Info("corpus chunked", zap.Int("records", len(records)), zap.Int("chunks", len(chunks)))

	idx, err := vecindex.New(p.dim)
	if err != nil {
		return nil, err
	}
	idx.SnapshotID = uuid.NewString()
	idx.CorpusHash = corpus.Fingerprint(records)
	idx.BuiltAt = time.Now()

	for batchStart := 0; batchStart < len(chunks); batchStart += embedBatchSize {
		batchEnd := batchStart + embedBatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]
		texts := make([]string, 0, len(batch))
		for _, c := range batch {
			texts = append(texts, c.Text)
		}
		vectors, err := p.embedWithRetry(ctx, texts, ai.TaskDocument)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d..%d: %w", batchStart, batchEnd, err)
		}
		for j, vec := range vectors {
			if err := idx.Insert(model.EmbeddedChunk{Chunk: batch[j], Vector: vec}); err != nil {
				return nil, err
			}
		}
		logger.Debug("embedded chunk batch", zap.Int("done", batchEnd), zap.Int("total", len(chunks)))
	}

	p.persistArtifacts(ctx, idx)
	return &snapshot{index: idx, records: records, quality: quality}, nil
}

// loadRecords reads the corpus from the configured source. When the
// source is unreachable and a database is wired, the records stored on
// the last successful load are used instead.
func (p *Pipeline) loadRecords(ctx context.Context) ([]model.SourceRecord, model.QualityReport, error) {
	logger := logutil.GetLogger(ctx)
	rc, err := p.source.Open(ctx, p.corpusCfg.TrainPath)
	if err != nil {
		if p.recordRepo == nil {
			return nil, model.QualityReport{}, fmt.Errorf("open corpus %s: %w", p.corpusCfg.TrainPath, err)
		}
		logger.Warn("corpus source unavailable, using stored records",
			zap.String("path", p.corpusCfg.TrainPath), zap.Error(err))
		records, rerr := p.recordRepo.List(ctx)
		if rerr != nil {
			return nil, model.QualityReport{}, fmt.Errorf("load stored corpus: %w", rerr)
		}
		if len(records) == 0 {
			return nil, model.QualityReport{}, fmt.Errorf("%w: corpus source unavailable and no stored records", apperr.ErrCorpusFormat)
		}
		return records, corpus.Analyze(records), nil
	}
	defer func() { _ = rc.Close() }()

	res, err := corpus.LoadCSV(ctx, rc, p.corpusCfg.Category)
	if err != nil {
		return nil, model.QualityReport{}, err
	}
	if p.corpusCfg.ProcessedPath != "" {
		if err := corpus.SaveProcessed(p.corpusCfg.ProcessedPath, res.Records); err != nil {
			logger.Warn("failed to save processed corpus", zap.String("path", p.corpusCfg.ProcessedPath), zap.Error(err))
		}
	}
	if p.recordRepo != nil {
		if err := p.recordRepo.ReplaceAll(ctx, res.Records); err != nil {
			logger.Warn("failed to store corpus records", zap.Error(err))
		}
	}
	return res.Records, res.Report, nil
}

// persistArtifacts saves the snapshot file and the chunk embeddings.
// Both are conveniences for the next restart, failures only log.
func (p *Pipeline) persistArtifacts(ctx context.Context, idx *vecindex.Index) {
	logger := logutil.GetLogger(ctx)
	if p.corpusCfg.SnapshotPath != "" {
		if err := idx.Save(p.corpusCfg.SnapshotPath); err != nil {
			logger.Warn("failed to persist index snapshot",
				zap.String("path", p.corpusCfg.SnapshotPath), zap.Error(err))
		}
	}
	if p.chunkRepo != nil {
		meta := model.SnapshotMeta{
			SnapshotID: idx.SnapshotID,
			CorpusHash: idx.CorpusHash,
			Dim:        idx.Dim(),
			ChunkCount: idx.Len(),
			BuiltAt:    idx.BuiltAt.Unix(),
		}
		if err := p.chunkRepo.SaveSnapshot(ctx, meta, idx.Entries()); err != nil {
			logger.Warn("failed to store chunk embeddings", zap.Error(err))
		}
	}
}

func (p *Pipeline) embedWithRetry(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff.Delay(p.retryDelay, attempt)):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		vectors, err := p.embedder.Embed(callCtx, texts, taskType)
		cancel()
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts",
					apperr.ErrEmbedUnavailable, len(vectors), len(texts))
			}
			return vectors, nil
		}
		lastErr = timeoutErr(err, apperr.ErrEmbedTimeout)
		if !apperr.IsTransient(lastErr) {
			return nil, lastErr
		}
		logutil.GetLogger(ctx).Warn("embedding attempt failed",
			zap.Int("attempt", attempt+1), zap.Int("texts", len(texts)), zap.Error(lastErr))
	}
	return nil, lastErr
}

// LoadSnapshot restores the last persisted index instead of rebuilding
// it, preferring the snapshot file and falling back to the database.
func (p *Pipeline) LoadSnapshot(ctx context.Context) error {
	if !p.buildMu.TryLock() {
		return fmt.Errorf("%w: another build is already running", apperr.ErrConflict)
	}
	defer p.buildMu.Unlock()

	snap, err := p.loadSavedSnapshot(ctx)
	if err != nil {
		return err
	}
	p.current.Store(snap)
	if p.answers != nil {
		p.answers.Purge()
	}
	p.state.Store(int32(StateReady))
	logutil.GetLogger(ctx).Info("index snapshot loaded",
		zap.String("snapshot_id", snap.index.SnapshotID),
		zap.Int("chunks", snap.index.Len()),
		zap.Int("records", len(snap.records)))
	return nil
}

func (p *Pipeline) loadSavedSnapshot(ctx context.Context) (*snapshot, error) {
	if p.corpusCfg.SnapshotPath != "" {
		idx, err := vecindex.Load(p.corpusCfg.SnapshotPath)
		if err == nil {
			return p.verifyLoaded(ctx, idx)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if p.chunkRepo != nil {
		meta, entries, err := p.chunkRepo.LoadLatest(ctx)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			idx, err := vecindex.New(meta.Dim)
			if err != nil {
				return nil, err
			}
			idx.SnapshotID = meta.SnapshotID
			idx.CorpusHash = meta.CorpusHash
			idx.BuiltAt = time.Unix(meta.BuiltAt, 0)
			for _, ec := range entries {
				if err := idx.Insert(ec); err != nil {
					return nil, err
				}
			}
			return p.verifyLoaded(ctx, idx)
		}
	}
	return nil, fmt.Errorf("%w: no persisted snapshot available", apperr.ErrNotFound)
}

// verifyLoaded rejects snapshots that no longer match the configured
// embedding dimension or the processed corpus on disk.
func (p *Pipeline) verifyLoaded(ctx context.Context, idx *vecindex.Index) (*snapshot, error) {
	if idx.Dim() != p.dim {
		return nil, fmt.Errorf("%w: snapshot dimension %d, configured %d", apperr.ErrDimensionMismatch, idx.Dim(), p.dim)
	}
	snap := &snapshot{index: idx}
	if p.corpusCfg.ProcessedPath != "" {
		records, err := corpus.LoadProcessed(p.corpusCfg.ProcessedPath)
		switch {
		case err == nil:
			if fp := corpus.Fingerprint(records); fp != idx.CorpusHash {
				return nil, fmt.Errorf("%w: snapshot does not match processed corpus, rebuild required", apperr.ErrConflict)
			}
			snap.records = records
			snap.quality = corpus.Analyze(records)
		case errors.Is(err, os.ErrNotExist):
		default:
			logutil.GetLogger(ctx).Warn("failed to load processed corpus",
				zap.String("path", p.corpusCfg.ProcessedPath), zap.Error(err))
		}
	}
	return snap, nil
}
