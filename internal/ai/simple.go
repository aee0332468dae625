package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultSimpleDim = 256

// The simple provider runs fully offline. The embedder hashes
// character unigrams and bigrams into a fixed bucket count and L2
// normalizes, so lexically close Korean questions land close in
// vector space. The generator answers extractively from the prompt
// context. Both are deterministic, which the dev loop and the test
// suite rely on.

type simpleConfig struct {
	Dim int `json:"dim"`
}

type simpleEmbedder struct {
	model string
	dim   int
}

func (e *simpleEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	_ = ctx
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, e.embedOne(text))
	}
	return vectors, nil
}

func (e *simpleEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dim)
	runes := []rune(strings.ToLower(text))
	for i, r := range runes {
		if !isWordRune(r) {
			continue
		}
		vec[bucket(string(r), e.dim)]++
		if i+1 < len(runes) && isWordRune(runes[i+1]) {
			vec[bucket(string(runes[i:i+2]), e.dim)]++
		}
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (e *simpleEmbedder) ModelName() string {
	return e.model
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func bucket(s string, dim int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dim))
}

type simpleGenerator struct{}

func (g *simpleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	_ = ctx
	block := firstContextBlock(prompt)
	if block == "" {
		return "관련 정보를 바탕으로 답변을 드릴 수 없습니다.", nil
	}
	if idx := strings.LastIndex(block, "답변:"); idx >= 0 {
		block = strings.TrimSpace(block[idx+len("답변:"):])
	}
	return "참고 자료에 따르면, " + block, nil
}

// firstContextBlock pulls the text of the first [출처 1] section out
// of a grounding prompt.
func firstContextBlock(prompt string) string {
	lines := strings.Split(prompt, "\n")
	var collected []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[출처 1]") {
			inBlock = true
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "[출처 1]"))
			if rest != "" {
				collected = append(collected, rest)
			}
			continue
		}
		if inBlock {
			if trimmed == "" || strings.HasPrefix(trimmed, "[출처") {
				break
			}
			collected = append(collected, trimmed)
		}
	}
	return strings.TrimSpace(strings.Join(collected, " "))
}

func createSimpleGenerator(model string, args interface{}) (IGenerator, error) {
	_ = model
	_ = args
	return &simpleGenerator{}, nil
}

func createSimpleEmbedder(model string, args interface{}) (IEmbedder, error) {
	cfg := &simpleConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	dim := cfg.Dim
	if dim <= 0 {
		dim = defaultSimpleDim
	}
	if model == "" {
		model = "simple-ngram"
	}
	return &simpleEmbedder{model: model, dim: dim}, nil
}

func init() {
	RegisterGenerator("simple", createSimpleGenerator)
	RegisterEmbedder("simple", createSimpleEmbedder)
}
