package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey          string  `json:"api_key"`
	BaseURL         string  `json:"base_url"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIChatMsg `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type openAIGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: openai api key not configured", apperr.ErrGenerateUnavailable)
	}
	reqBody := openAIChatRequest{
		Model:       g.model,
		Messages:    []openAIChatMsg{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Stream:      false,
	}
	var out openAIChatResponse
	if err := postJSON(ctx, strings.TrimRight(g.baseURL, "/")+"/chat/completions", g.apiKey, nil, reqBody, &out); err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrGenerateUnavailable, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: openai response has no choices", apperr.ErrGenerateUnavailable)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type openAIEmbedder struct {
	apiKey  string
	baseURL string
	model   string
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key not configured", apperr.ErrEmbedUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	reqBody := openAIEmbedRequest{Model: e.model, Input: texts}
	var out openAIEmbedResponse
	if err := postJSON(ctx, strings.TrimRight(e.baseURL, "/")+"/embeddings", e.apiKey, nil, reqBody, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrEmbedUnavailable, err)
	}
	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: openai response missing embedding %d", apperr.ErrEmbedUnavailable, i)
		}
	}
	return vectors, nil
}

func (e *openAIEmbedder) ModelName() string {
	return e.model
}

// postJSON posts a JSON body with bearer auth and decodes the JSON
// response. Non-2xx statuses come back as errors with the body text.
func postJSON(ctx context.Context, endpoint, apiKey string, headers map[string]string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func createOpenAIGenerator(model string, args interface{}) (IGenerator, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	return &openAIGenerator{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   cfg.MaxOutputTokens,
	}, nil
}

func createOpenAIEmbedder(model string, args interface{}) (IEmbedder, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIEmbedder{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		model:   model,
	}, nil
}

func init() {
	RegisterGenerator("openai", createOpenAIGenerator)
	RegisterEmbedder("openai", createOpenAIEmbedder)
}
