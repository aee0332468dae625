package corpus

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/seoulmedi/hosqa/internal/config"
)

// Source opens raw corpus files by path. Implementations exist for the
// local filesystem and S3 compatible object stores.
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

type Factory func(cfg config.CorpusConfig) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewSource(cfg config.CorpusConfig) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Source))
	if key == "" {
		key = "local"
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported corpus source: %s", cfg.Source)
	}
	return factory(cfg)
}

type localSource struct{}

func init() {
	Register("local", createLocalSource)
}

func createLocalSource(cfg config.CorpusConfig) (Source, error) {
	_ = cfg
	return &localSource{}, nil
}

func (s *localSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	_ = ctx
	if path == "" {
		return nil, fmt.Errorf("corpus path is required")
	}
	return os.Open(path)
}
