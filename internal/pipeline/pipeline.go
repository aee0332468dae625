package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/ai"
	"github.com/seoulmedi/hosqa/internal/answer"
	"github.com/seoulmedi/hosqa/internal/chunker"
	"github.com/seoulmedi/hosqa/internal/config"
	"github.com/seoulmedi/hosqa/internal/corpus"
	"github.com/seoulmedi/hosqa/internal/model"
	"github.com/seoulmedi/hosqa/internal/pkg/backoff"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
	"github.com/seoulmedi/hosqa/internal/repo"
	"github.com/seoulmedi/hosqa/internal/retriever"
	"github.com/seoulmedi/hosqa/internal/vecindex"
)

// Deps are the collaborators the orchestrator wires together. Records
// and Chunks are optional, everything works without a database.
type Deps struct {
	Source    corpus.Source
	Embedder  ai.IEmbedder
	Generator ai.IGenerator
	Records   *repo.RecordRepo
	Chunks    *repo.ChunkRepo
}

// snapshot is one immutable index generation together with the corpus
// it was built from. Readers grab the whole struct through an atomic
// pointer so they never see a half-swapped state.
type snapshot struct {
	index   *vecindex.Index
	records []model.SourceRecord
	quality model.QualityReport
}

// Pipeline owns the index lifecycle and answers questions against the
// current snapshot.
type Pipeline struct {
	corpusCfg  config.CorpusConfig
	ragCfg     config.RAGConfig
	dim        int
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration

	source    corpus.Source
	embedder  ai.IEmbedder
	generator *answer.Generator
	chk       *chunker.Chunker
	rtv       *retriever.Retriever

	recordRepo *repo.RecordRepo
	chunkRepo  *repo.ChunkRepo

	state    atomic.Int32
	current  atomic.Pointer[snapshot]
	buildMu  sync.Mutex
	autoOnce sync.Once

	answers *expirable.LRU[string, model.AnswerResult]
}

func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Source == nil || deps.Embedder == nil || deps.Generator == nil {
		return nil, fmt.Errorf("%w: pipeline needs a corpus source, an embedder and a generator", apperr.ErrInvalidConfig)
	}
	chk, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.RAG.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", apperr.ErrInvalidConfig, cfg.RAG.TopK)
	}
	if cfg.RAG.SimilarityThreshold < 0 || cfg.RAG.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("%w: similarity_threshold must be within [0,1], got %v", apperr.ErrInvalidConfig, cfg.RAG.SimilarityThreshold)
	}
	if cfg.AI.VectorDim <= 0 {
		return nil, fmt.Errorf("%w: vector_dim must be positive, got %d", apperr.ErrInvalidConfig, cfg.AI.VectorDim)
	}
	p := &Pipeline{
		corpusCfg:  cfg.Corpus,
		ragCfg:     cfg.RAG,
		dim:        cfg.AI.VectorDim,
		timeout:    time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		maxRetries: cfg.AI.MaxRetries,
		retryDelay: time.Duration(cfg.AI.RetryDelayMS) * time.Millisecond,
		source:     deps.Source,
		embedder:   deps.Embedder,
		generator:  answer.New(deps.Generator, cfg.AI.LLMModel, cfg.RAG.MaxTokens),
		chk:        chk,
		rtv:        retriever.New(deps.Embedder, cfg.AI.VectorDim),
		recordRepo: deps.Records,
		chunkRepo:  deps.Chunks,
	}
	if cfg.Cache.AnswerLRUSize > 0 {
		ttl := time.Duration(cfg.Cache.AnswerTTLMinutes) * time.Minute
		p.answers = expirable.NewLRU[string, model.AnswerResult](cfg.Cache.AnswerLRUSize, nil, ttl)
	}
	return p, nil
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Ask answers one question with the configured retrieval parameters.
func (p *Pipeline) Ask(ctx context.Context, question string) (*model.AnswerResult, error) {
	return p.AskWith(ctx, question, 0, -1)
}

// AskWith answers one question. topK <= 0 and threshold < 0 fall back
// to the configured defaults. Provider outages degrade to a zero
// confidence apology instead of failing the call.
func (p *Pipeline) AskWith(ctx context.Context, question string, topK int, threshold float64) (*model.AnswerResult, error) {
	start := time.Now()
	snap := p.current.Load()
	if snap == nil {
		p.triggerFirstBuild()
		return nil, fmt.Errorf("%w: pipeline state %s", apperr.ErrNotReady, p.State())
	}
	if topK <= 0 {
		topK = p.ragCfg.TopK
	}
	if threshold < 0 {
		threshold = p.ragCfg.SimilarityThreshold
	}
	logger := logutil.GetLogger(ctx)

	cacheKey := answerCacheKey(snap.index.SnapshotID, question, topK, threshold)
	if p.answers != nil {
		if cached, ok := p.answers.Get(cacheKey); ok {
			res := cached
			res.LatencyMS = time.Since(start).Milliseconds()
			logger.Debug("answer cache hit", zap.String("snapshot_id", res.SnapshotID))
			return &res, nil
		}
	}

	results, err := p.retrieveFrom(ctx, snap, question, topK, threshold)
	if err != nil {
		if apperr.IsTransient(err) {
			logger.Warn("retrieval still failing after retries, degrading", zap.Error(err))
			return p.degraded(snap, start, nil), nil
		}
		return nil, err
	}

	res, err := p.generateWithRetry(ctx, question, results)
	if err != nil {
		if apperr.IsTransient(err) {
			logger.Warn("generation still failing after retries, degrading", zap.Error(err))
			return p.degraded(snap, start, results), nil
		}
		return nil, err
	}
	res.SnapshotID = snap.index.SnapshotID
	res.LatencyMS = time.Since(start).Milliseconds()
	if p.answers != nil {
		p.answers.Add(cacheKey, *res)
	}
	logger.Info("question answered",
		zap.Int("sources", len(res.Sources)),
		zap.Float64("confidence", res.Confidence),
		zap.Int64("latency_ms", res.LatencyMS))
	return res, nil
}

// Retrieve exposes retrieval against the current snapshot, with the
// same retry policy ask() uses.
func (p *Pipeline) Retrieve(ctx context.Context, question string, topK int, threshold float64) ([]model.RetrievalResult, error) {
	snap := p.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: pipeline state %s", apperr.ErrNotReady, p.State())
	}
	if topK <= 0 {
		topK = p.ragCfg.TopK
	}
	if threshold < 0 {
		threshold = p.ragCfg.SimilarityThreshold
	}
	return p.retrieveFrom(ctx, snap, question, topK, threshold)
}

func (p *Pipeline) retrieveFrom(ctx context.Context, snap *snapshot, question string, topK int, threshold float64) ([]model.RetrievalResult, error) {
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
		results, err := p.rtv.Retrieve(callCtx, snap.index, question, topK, threshold)
		cancel()
		if err == nil {
			return results, nil
		}
		lastErr = timeoutErr(err, apperr.ErrEmbedTimeout)
		if !apperr.IsTransient(lastErr) {
			return nil, lastErr
		}
		logutil.GetLogger(ctx).Warn("retrieval attempt failed",
			zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return nil, lastErr
}

func (p *Pipeline) generateWithRetry(ctx context.Context, question string, results []model.RetrievalResult) (*model.AnswerResult, error) {
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
		res, err := p.generator.Generate(callCtx, question, results)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = timeoutErr(err, apperr.ErrGenerateTimeout)
		if !apperr.IsTransient(lastErr) {
			return nil, lastErr
		}
		logutil.GetLogger(ctx).Warn("generation attempt failed",
			zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return nil, lastErr
}

func (p *Pipeline) degraded(snap *snapshot, start time.Time, sources []model.RetrievalResult) *model.AnswerResult {
	if sources == nil {
		sources = []model.RetrievalResult{}
	}
	return &model.AnswerResult{
		AnswerText: ai.DegradedAnswer,
		Confidence: 0,
		Sources:    sources,
		LatencyMS:  time.Since(start).Milliseconds(),
		SnapshotID: snap.index.SnapshotID,
	}
}

// triggerFirstBuild starts the initial build in the background once,
// so the first caller does not block on embedding the whole corpus.
func (p *Pipeline) triggerFirstBuild() {
	if p.State() != StateUninitialized {
		return
	}
	p.autoOnce.Do(func() {
		go func() {
			ctx := context.Background()
			if err := p.Build(ctx); err != nil {
				logutil.GetLogger(ctx).Error("background index build failed", zap.Error(err))
			}
		}()
	})
}

// StatusInfo is the operator-facing view of the pipeline.
type StatusInfo struct {
	State      string               `json:"state"`
	SnapshotID string               `json:"snapshot_id,omitempty"`
	BuiltAt    int64                `json:"built_at,omitempty"`
	Dim        int                  `json:"dim,omitempty"`
	Chunks     int                  `json:"chunks,omitempty"`
	Records    int                  `json:"records,omitempty"`
	Quality    *model.QualityReport `json:"quality,omitempty"`
}

// Records returns the corpus behind the current snapshot, or nil when
// no snapshot is installed or the snapshot was loaded without one.
func (p *Pipeline) Records() []model.SourceRecord {
	if snap := p.current.Load(); snap != nil {
		return snap.records
	}
	return nil
}

func (p *Pipeline) Status() StatusInfo {
	info := StatusInfo{State: p.State().String()}
	if snap := p.current.Load(); snap != nil {
		info.SnapshotID = snap.index.SnapshotID
		info.BuiltAt = snap.index.BuiltAt.Unix()
		info.Dim = snap.index.Dim()
		info.Chunks = snap.index.Len()
		info.Records = len(snap.records)
		q := snap.quality
		info.Quality = &q
	}
	return info
}

func answerCacheKey(snapshotID, question string, topK int, threshold float64) string {
	h := sha256.New()
	io.WriteString(h, snapshotID)
	h.Write([]byte{0x1f})
	io.WriteString(h, corpus.Normalize(question))
	h.Write([]byte{0x1f})
	io.WriteString(h, strconv.Itoa(topK))
	h.Write([]byte{0x1f})
	io.WriteString(h, strconv.FormatFloat(threshold, 'f', -1, 64))
	return hex.EncodeToString(h.Sum(nil))
}

func timeoutErr(err error, sentinel error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, sentinel) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
