package embedcache

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/ai"
	"github.com/seoulmedi/hosqa/internal/model"
	"github.com/seoulmedi/hosqa/internal/repo"
)

// WrapDBCache persists embeddings across restarts so a corpus rebuild
// with an unchanged embedding model costs no provider calls. Save
// failures only log, the embedding is still returned.
func WrapDBCache(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if d == nil || d.next == nil {
		return nil, nil
	}
	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	var missHashes []string
	name := normalizeModel(d.next.ModelName())
	for i, text := range texts {
		_, contentHash, _ := buildCacheKey(name, taskType, text)
		values, ok, err := d.repo.Get(ctx, name, taskType, contentHash)
		if err != nil {
			return nil, err
		}
		if ok {
			vectors[i] = values
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
		missHashes = append(missHashes, contentHash)
	}
	if hits := len(texts) - len(missTexts); hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hits (db)",
			zap.Int("hits", hits), zap.Int("misses", len(missTexts)), zap.String("task_type", taskType))
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}
	res, err := d.next.Embed(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	if len(res) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(res), len(missTexts))
	}
	for j, v := range res {
		vectors[missIdx[j]] = v
		if err := d.repo.Save(ctx, &model.CachedEmbedding{
			ModelName:   name,
			TaskType:    taskType,
			ContentHash: missHashes[j],
			Embedding:   v,
			Ctime:       time.Now().Unix(),
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return vectors, nil
}

func (d *dbEmbedder) ModelName() string {
	if d == nil || d.next == nil {
		return ""
	}
	return d.next.ModelName()
}
