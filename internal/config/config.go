package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"

	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

type Config struct {
	Server    ServerConfig     `json:"server"`
	LogConfig logger.LogConfig `json:"log_config"`
	Database  DatabaseConfig   `json:"database"`
	Corpus    CorpusConfig     `json:"corpus"`
	RAG       RAGConfig        `json:"rag"`
	AI        AIConfig         `json:"ai"`
	Cache     CacheConfig      `json:"cache"`
	Auth      AuthConfig       `json:"auth"`
	Schedule  ScheduleConfig   `json:"schedule"`
}

type ServerConfig struct {
	Port          int      `json:"port"`
	CORSAllowlist []string `json:"cors_allowlist"`
	RateLimitMS   int      `json:"rate_limit_ms"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	DSN      string `json:"dsn"`
}

// Enabled reports whether a database is configured at all. The pipeline
// runs fully in memory without one.
func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

type CorpusConfig struct {
	Source         string   `json:"source"`
	TrainPath      string   `json:"train_path"`
	ValidationPath string   `json:"validation_path"`
	ProcessedPath  string   `json:"processed_path"`
	SnapshotPath   string   `json:"snapshot_path"`
	Category       string   `json:"category"`
	S3             S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type RAGConfig struct {
	ChunkSize           int     `json:"chunk_size"`
	ChunkOverlap        int     `json:"chunk_overlap"`
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxTokens           int     `json:"max_tokens"`
}

type AIConfig struct {
	EmbedProvider  string      `json:"embed_provider"`
	EmbeddingModel string      `json:"embedding_model"`
	LLMProvider    string      `json:"llm_provider"`
	LLMModel       string      `json:"llm_model"`
	VectorDim      int         `json:"vector_dim"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	MaxRetries     int         `json:"max_retries"`
	RetryDelayMS   int         `json:"retry_delay_ms"`
	Args           interface{} `json:"args"`
}

type CacheConfig struct {
	EmbedLRUSize     int  `json:"embed_lru_size"`
	EmbedTTLMinutes  int  `json:"embed_ttl_minutes"`
	AnswerLRUSize    int  `json:"answer_lru_size"`
	AnswerTTLMinutes int  `json:"answer_ttl_minutes"`
	UseDBCache       bool `json:"use_db_cache"`
}

type AuthConfig struct {
	JWTSecret            string `json:"jwt_secret"`
	TokenTTLHours        int    `json:"token_ttl_hours"`
	Operator             string `json:"operator"`
	OperatorPasswordHash string `json:"operator_password_hash"`
}

type ScheduleConfig struct {
	RefreshSpec      string `json:"refresh_spec"`
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
	CacheMaxAgeDays  int    `json:"cache_max_age_days"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Credentials may be given as ${ENV_VAR} references.
	raw = []byte(os.ExpandEnv(string(raw)))

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Corpus.Source == "" {
		c.Corpus.Source = "local"
	}
	if c.Corpus.Category == "" {
		c.Corpus.Category = "hospital"
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 300
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 50
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 3
	}
	if c.RAG.SimilarityThreshold == 0 {
		c.RAG.SimilarityThreshold = 0.3
	}
	if c.RAG.MaxTokens == 0 {
		c.RAG.MaxTokens = 1024
	}
	if c.AI.EmbedProvider == "" {
		c.AI.EmbedProvider = "simple"
	}
	if c.AI.LLMProvider == "" {
		c.AI.LLMProvider = c.AI.EmbedProvider
	}
	if c.AI.VectorDim == 0 {
		c.AI.VectorDim = 256
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 30
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 3
	}
	if c.AI.RetryDelayMS == 0 {
		c.AI.RetryDelayMS = 500
	}
	if c.Cache.EmbedLRUSize == 0 {
		c.Cache.EmbedLRUSize = 4096
	}
	if c.Cache.EmbedTTLMinutes == 0 {
		c.Cache.EmbedTTLMinutes = 12 * 60
	}
	if c.Cache.AnswerLRUSize == 0 {
		c.Cache.AnswerLRUSize = 512
	}
	if c.Cache.AnswerTTLMinutes == 0 {
		c.Cache.AnswerTTLMinutes = 60
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = 72
	}
	if c.Auth.Operator == "" {
		c.Auth.Operator = "admin"
	}
	if c.Schedule.CacheMaxAgeDays == 0 {
		c.Schedule.CacheMaxAgeDays = 30
	}
}

// Validate checks the knobs that would otherwise fail deep inside a
// build. Chunk geometry and retrieval bounds are rejected up front.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", apperr.ErrInvalidConfig, c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			apperr.ErrInvalidConfig, c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", apperr.ErrInvalidConfig, c.RAG.TopK)
	}
	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in [0,1], got %v", apperr.ErrInvalidConfig, c.RAG.SimilarityThreshold)
	}
	if c.RAG.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", apperr.ErrInvalidConfig, c.RAG.MaxTokens)
	}
	if c.AI.VectorDim <= 0 {
		return fmt.Errorf("%w: vector_dim must be positive, got %d", apperr.ErrInvalidConfig, c.AI.VectorDim)
	}
	if c.AI.EmbedProvider == "" {
		return fmt.Errorf("%w: embed_provider is required", apperr.ErrInvalidConfig)
	}
	switch c.Corpus.Source {
	case "local":
	case "s3":
		if c.Corpus.S3.Bucket == "" || c.Corpus.S3.SecretID == "" || c.Corpus.S3.SecretKey == "" {
			return fmt.Errorf("%w: corpus.s3 bucket/secret_id/secret_key are required for s3 source", apperr.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: corpus.source must be local or s3, got %q", apperr.ErrInvalidConfig, c.Corpus.Source)
	}
	return nil
}
