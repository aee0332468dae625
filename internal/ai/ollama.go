package ai

import (
	"context"
	"fmt"
	"strings"

	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

const defaultOllamaBaseURL = "http://localhost:11434"

type ollamaConfig struct {
	BaseURL     string  `json:"base_url"`
	Temperature float64 `json:"temperature"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaGenerator struct {
	baseURL     string
	model       string
	temperature float64
}

func (g *ollamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:   g.model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]interface{}{"temperature": g.temperature},
	}
	var out ollamaGenerateResponse
	if err := postJSON(ctx, strings.TrimRight(g.baseURL, "/")+"/api/generate", "", nil, reqBody, &out); err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrGenerateUnavailable, err)
	}
	return strings.TrimSpace(out.Response), nil
}

// ollamaEmbedder calls the embeddings endpoint once per text, the API
// has no batch form.
type ollamaEmbedder struct {
	baseURL string
	model   string
}

func (e *ollamaEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		reqBody := ollamaEmbedRequest{Model: e.model, Prompt: text}
		var out ollamaEmbedResponse
		if err := postJSON(ctx, strings.TrimRight(e.baseURL, "/")+"/api/embeddings", "", nil, reqBody, &out); err != nil {
			return nil, fmt.Errorf("%w: text %d: %w", apperr.ErrEmbedUnavailable, i, err)
		}
		if len(out.Embedding) == 0 {
			return nil, fmt.Errorf("%w: ollama returned empty embedding for text %d", apperr.ErrEmbedUnavailable, i)
		}
		vectors = append(vectors, out.Embedding)
	}
	return vectors, nil
}

func (e *ollamaEmbedder) ModelName() string {
	return e.model
}

func createOllamaGenerator(model string, args interface{}) (IGenerator, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	return &ollamaGenerator{baseURL: baseURL, model: model, temperature: temperature}, nil
}

func createOllamaEmbedder(model string, args interface{}) (IEmbedder, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &ollamaEmbedder{baseURL: baseURL, model: model}, nil
}

func init() {
	RegisterGenerator("ollama", createOllamaGenerator)
	RegisterEmbedder("ollama", createOllamaEmbedder)
}
