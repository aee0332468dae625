package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

type geminiConfig struct {
	APIKey          string  `json:"api_key"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

type geminiGenerator struct {
	apiKey      string
	model       string
	temperature float32
	maxTokens   int32
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: gemini api key not configured", apperr.ErrGenerateUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrGenerateUnavailable, err)
	}
	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: g.maxTokens,
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		config,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrGenerateUnavailable, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

type geminiEmbedder struct {
	apiKey string
	model  string
}

func (e *geminiEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not configured", apperr.ErrEmbedUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrEmbedUnavailable, err)
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	var config *genai.EmbedContentConfig
	if taskType != "" {
		config = &genai.EmbedContentConfig{TaskType: taskType}
	}
	resp, err := client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrEmbedUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: gemini returned %d embeddings for %d texts", apperr.ErrEmbedUnavailable, len(resp.Embeddings), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *geminiEmbedder) ModelName() string {
	return e.model
}

func createGeminiGenerator(model string, args interface{}) (IGenerator, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	return &geminiGenerator{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: float32(temperature),
		maxTokens:   int32(cfg.MaxOutputTokens),
	}, nil
}

func createGeminiEmbedder(model string, args interface{}) (IEmbedder, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiEmbedder{
		apiKey: strings.TrimSpace(cfg.APIKey),
		model:  model,
	}, nil
}

func init() {
	RegisterGenerator("gemini", createGeminiGenerator)
	RegisterEmbedder("gemini", createGeminiEmbedder)
}
