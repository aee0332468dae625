package answer

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/ai"
	"github.com/seoulmedi/hosqa/internal/model"
)

// Generator turns retrieved contexts into a grounded answer.
type Generator struct {
	gen       ai.IGenerator
	llmModel  string
	maxTokens int
}

func New(gen ai.IGenerator, llmModel string, maxTokens int) *Generator {
	return &Generator{gen: gen, llmModel: llmModel, maxTokens: maxTokens}
}

// Generate builds the grounding prompt from the retrieved contexts and asks
// the model. When nothing was retrieved it returns the fixed fallback answer
// without touching the model at all.
func (g *Generator) Generate(ctx context.Context, question string, contexts []model.RetrievalResult) (*model.AnswerResult, error) {
	if len(contexts) == 0 {
		return &model.AnswerResult{
			AnswerText: ai.FallbackAnswer,
			Confidence: 0,
			Sources:    []model.RetrievalResult{},
		}, nil
	}
	retained := g.fitBudget(ctx, question, contexts)
	texts := make([]string, 0, len(retained))
	for _, c := range retained {
		texts = append(texts, c.Chunk.Text)
	}
	prompt := ai.BuildAnswerPrompt(question, texts)
	text, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &model.AnswerResult{
		AnswerText: text,
		Confidence: Confidence(retained),
		Sources:    retained,
	}, nil
}

// fitBudget drops the lowest scoring contexts from the tail until the prompt
// fits the token budget. At least one context always survives so the answer
// stays grounded.
func (g *Generator) fitBudget(ctx context.Context, question string, contexts []model.RetrievalResult) []model.RetrievalResult {
	retained := contexts
	for len(retained) > 1 {
		texts := make([]string, 0, len(retained))
		for _, c := range retained {
			texts = append(texts, c.Chunk.Text)
		}
		if ai.CountTokens(g.llmModel, ai.BuildAnswerPrompt(question, texts)) <= g.maxTokens {
			break
		}
		retained = retained[:len(retained)-1]
	}
	if len(retained) < len(contexts) {
		logutil.GetLogger(ctx).Debug("context truncated to fit token budget",
			zap.Int("given", len(contexts)), zap.Int("retained", len(retained)),
			zap.Int("max_tokens", g.maxTokens))
	}
	return retained
}

// Confidence scores an answer from the similarity of the contexts that
// grounded it, weighting the best match over the average.
func Confidence(contexts []model.RetrievalResult) float64 {
	if len(contexts) == 0 {
		return 0
	}
	max, sum := contexts[0].Score, 0.0
	for _, c := range contexts {
		if c.Score > max {
			max = c.Score
		}
		sum += c.Score
	}
	mean := sum / float64(len(contexts))
	v := 0.7*max + 0.3*mean
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
