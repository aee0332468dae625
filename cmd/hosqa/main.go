package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/ai"
	"github.com/seoulmedi/hosqa/internal/config"
	"github.com/seoulmedi/hosqa/internal/corpus"
	"github.com/seoulmedi/hosqa/internal/db"
	"github.com/seoulmedi/hosqa/internal/embedcache"
	"github.com/seoulmedi/hosqa/internal/eval"
	"github.com/seoulmedi/hosqa/internal/handler"
	"github.com/seoulmedi/hosqa/internal/job"
	"github.com/seoulmedi/hosqa/internal/middleware"
	"github.com/seoulmedi/hosqa/internal/pipeline"
	"github.com/seoulmedi/hosqa/internal/pkg/jwt"
	"github.com/seoulmedi/hosqa/internal/pkg/password"
	"github.com/seoulmedi/hosqa/internal/repo"
	"github.com/seoulmedi/hosqa/internal/schedule"
)

func main() {
	var configPath string

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		_ = godotenv.Load()
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	rootCmd := &cobra.Command{
		Use:   "hosqa",
		Short: "hospital customer QA service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the answering server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(cfg, a)
		},
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "build the index from the corpus and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.pipeline.Build(cmd.Context()); err != nil {
				return err
			}
			st := a.pipeline.Status()
			logutil.GetLogger(cmd.Context()).Info("index built",
				zap.String("snapshot_id", st.SnapshotID),
				zap.Int("records", st.Records),
				zap.Int("chunks", st.Chunks),
			)
			return nil
		},
	}

	var askTopK int
	var askThreshold float64
	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "answer one question from the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			if err := a.ready(ctx); err != nil {
				return err
			}
			result, err := a.pipeline.AskWith(ctx, args[0], askTopK, askThreshold)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "contexts to retrieve, 0 uses the configured default")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", -1, "similarity threshold, negative uses the configured default")

	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "score retrieval quality against the validation split",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Corpus.ValidationPath == "" {
				return fmt.Errorf("corpus.validation_path is required for eval")
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			if err := a.ready(ctx); err != nil {
				return err
			}
			rc, err := a.source.Open(ctx, cfg.Corpus.ValidationPath)
			if err != nil {
				return fmt.Errorf("open validation split: %w", err)
			}
			defer rc.Close()
			loaded, err := corpus.LoadCSV(ctx, rc, cfg.Corpus.Category)
			if err != nil {
				return err
			}
			report, err := eval.Run(ctx, a.pipeline, loaded.Records, cfg.RAG.TopK, cfg.RAG.SimilarityThreshold)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	passwdCmd := &cobra.Command{
		Use:   "passwd [password]",
		Short: "hash an operator password for the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}

	var tokenPassword string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint an operator token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenPassword == "" {
				return fmt.Errorf("--password is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.OperatorPasswordHash == "" {
				return fmt.Errorf("auth.operator_password_hash is not configured")
			}
			if err := password.Compare(cfg.Auth.OperatorPasswordHash, tokenPassword); err != nil {
				return fmt.Errorf("invalid operator password")
			}
			ttl := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
			token, err := jwt.GenerateToken(cfg.Auth.Operator, "admin", []byte(cfg.Auth.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokenPassword, "password", "", "operator password")

	rootCmd.AddCommand(runCmd, buildCmd, askCmd, evalCmd, passwdCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

type app struct {
	source    corpus.Source
	pipeline  *pipeline.Pipeline
	db        *sql.DB
	cacheRepo *repo.EmbeddingCacheRepo
}

func newApp(cfg *config.Config) (*app, error) {
	src, err := corpus.NewSource(cfg.Corpus)
	if err != nil {
		return nil, fmt.Errorf("init corpus source: %w", err)
	}

	embedArgs := cfg.AI.Args
	if strings.EqualFold(cfg.AI.EmbedProvider, "simple") {
		// The offline embedder reads its dimension from provider args.
		merged := map[string]interface{}{}
		if raw, ok := embedArgs.(map[string]interface{}); ok {
			for k, v := range raw {
				merged[k] = v
			}
		}
		merged["dim"] = cfg.AI.VectorDim
		embedArgs = merged
	}
	emb, err := ai.NewEmbedder(cfg.AI.EmbedProvider, cfg.AI.EmbeddingModel, embedArgs)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	gen, err := ai.NewGenerator(cfg.AI.LLMProvider, cfg.AI.LLMModel, cfg.AI.Args)
	if err != nil {
		return nil, fmt.Errorf("init generator: %w", err)
	}

	var (
		dbConn     *sql.DB
		recordRepo *repo.RecordRepo
		chunkRepo  *repo.ChunkRepo
		cacheRepo  *repo.EmbeddingCacheRepo
	)
	if cfg.Database.Enabled() {
		dbConn, err = db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(dbConn); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		recordRepo = repo.NewRecordRepo(dbConn)
		chunkRepo = repo.NewChunkRepo(dbConn)
		cacheRepo = repo.NewEmbeddingCacheRepo(dbConn)
		if cfg.Cache.UseDBCache {
			emb = embedcache.WrapDBCache(emb, cacheRepo)
		}
	}
	emb = embedcache.WrapLRUCache(emb, cfg.Cache.EmbedLRUSize,
		time.Duration(cfg.Cache.EmbedTTLMinutes)*time.Minute)

	p, err := pipeline.New(cfg, pipeline.Deps{
		Source:    src,
		Embedder:  emb,
		Generator: gen,
		Records:   recordRepo,
		Chunks:    chunkRepo,
	})
	if err != nil {
		if dbConn != nil {
			_ = dbConn.Close()
		}
		return nil, err
	}
	return &app{source: src, pipeline: p, db: dbConn, cacheRepo: cacheRepo}, nil
}

// ready loads a saved snapshot when one matches the corpus, otherwise
// builds from scratch.
func (a *app) ready(ctx context.Context) error {
	if err := a.pipeline.LoadSnapshot(ctx); err != nil {
		logutil.GetLogger(ctx).Warn("snapshot not reusable, building from corpus", zap.Error(err))
		return a.pipeline.Build(ctx)
	}
	return nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func runServer(cfg *config.Config, a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.ready(ctx); err != nil {
		// The server still starts; an operator rebuild recovers from a
		// failed first build without a restart.
		logutil.GetLogger(ctx).Error("initial index build failed", zap.Error(err))
	}

	deps := handler.RouterDeps{
		Ask:           handler.NewAskHandler(a.pipeline),
		Admin:         handler.NewAdminHandler(a.pipeline, cfg.Auth),
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
		AskRateWindow: time.Duration(cfg.Server.RateLimitMS) * time.Millisecond,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.Server.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	scheduled := false
	if cfg.Schedule.RefreshSpec != "" {
		if err := scheduler.AddJob(job.NewCorpusRefreshJob(a.pipeline), cfg.Schedule.RefreshSpec); err != nil {
			return err
		}
		scheduled = true
	}
	if cfg.Schedule.CacheCleanupSpec != "" && a.cacheRepo != nil {
		if err := scheduler.AddJob(
			job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.Schedule.CacheMaxAgeDays),
			cfg.Schedule.CacheCleanupSpec,
		); err != nil {
			return err
		}
		scheduled = true
	}
	if scheduled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	logutil.GetLogger(ctx).Info("http server listening", zap.Int("port", cfg.Server.Port))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
