package ai

import (
	"context"
	"fmt"
	"strings"

	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Temperature float64 `json:"temperature"`
	HTTPReferer string  `json:"http_referer"`
	XTitle      string  `json:"x_title"`
}

// openrouterGenerator speaks the OpenAI chat wire format with the
// extra attribution headers openrouter wants.
type openrouterGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	headers     map[string]string
}

func (g *openrouterGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: openrouter api key not configured", apperr.ErrGenerateUnavailable)
	}
	reqBody := openAIChatRequest{
		Model:       g.model,
		Messages:    []openAIChatMsg{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
		Stream:      false,
	}
	var out openAIChatResponse
	if err := postJSON(ctx, strings.TrimRight(g.baseURL, "/")+"/chat/completions", g.apiKey, g.headers, reqBody, &out); err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrGenerateUnavailable, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: openrouter response has no choices", apperr.ErrGenerateUnavailable)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func createOpenRouterGenerator(model string, args interface{}) (IGenerator, error) {
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	headers := map[string]string{}
	if referer := strings.TrimSpace(cfg.HTTPReferer); referer != "" {
		headers["HTTP-Referer"] = referer
	}
	if title := strings.TrimSpace(cfg.XTitle); title != "" {
		headers["X-Title"] = title
	}
	return &openrouterGenerator{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		headers:     headers,
	}, nil
}

func init() {
	RegisterGenerator("openrouter", createOpenRouterGenerator)
}
