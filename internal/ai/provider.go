package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Task types passed to embedding providers that distinguish indexing
// from querying.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

// DefaultTemperature keeps answers close to the source material.
const DefaultTemperature = 0.1

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type IEmbedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	ModelName() string
}

type GeneratorFactory func(model string, args interface{}) (IGenerator, error)

type EmbedderFactory func(model string, args interface{}) (IEmbedder, error)

var (
	genRegistry   = map[string]GeneratorFactory{}
	embedRegistry = map[string]EmbedderFactory{}
)

func RegisterGenerator(name string, factory GeneratorFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	genRegistry[key] = factory
}

func RegisterEmbedder(name string, factory EmbedderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewGenerator(name, model string, args interface{}) (IGenerator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai generator provider is required")
	}
	factory := genRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported generation provider: %s", name)
	}
	return factory(model, args)
}

func NewEmbedder(name, model string, args interface{}) (IEmbedder, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai embedder provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(model, args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
