package handler_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/seoulmedi/hosqa/internal/ai"
	"github.com/seoulmedi/hosqa/internal/config"
	"github.com/seoulmedi/hosqa/internal/corpus"
	"github.com/seoulmedi/hosqa/internal/handler"
	"github.com/seoulmedi/hosqa/internal/middleware"
	"github.com/seoulmedi/hosqa/internal/pipeline"
	"github.com/seoulmedi/hosqa/internal/pkg/password"
)

const (
	testOperator = "admin"
	testPassword = "secret"
)

func writeCorpusCSV(t *testing.T, path string, rows [][2]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"질문", "답변"}))
	for _, row := range rows {
		require.NoError(t, w.Write([]string{row[0], row[1]}))
	}
	w.Flush()
	require.NoError(t, w.Error())
	require.NoError(t, f.Close())
}

func newRouter(t *testing.T, askRateWindow time.Duration) (http.Handler, *pipeline.Pipeline) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	writeCorpusCSV(t, filepath.Join(dir, "train.csv"), [][2]string{
		{"진료 시간은 어떻게 되나요?", "평일 오전 9시부터 오후 6시까지 진료합니다."},
		{"예약 취소는 어떻게 하나요?", "예약 취소는 전화 또는 온라인으로 가능합니다."},
		{"주차장이 있나요?", "병원 지하 1층과 2층에 주차장이 있습니다."},
	})

	hash, err := password.Hash(testPassword)
	require.NoError(t, err)

	cfg := &config.Config{
		Corpus: config.CorpusConfig{
			Source:        "local",
			TrainPath:     filepath.Join(dir, "train.csv"),
			ProcessedPath: filepath.Join(dir, "processed.jsonl"),
			SnapshotPath:  filepath.Join(dir, "index.snapshot"),
			Category:      "고객문의",
		},
		RAG: config.RAGConfig{
			ChunkSize:           300,
			ChunkOverlap:        50,
			TopK:                3,
			SimilarityThreshold: 0.3,
			MaxTokens:           2048,
		},
		AI: config.AIConfig{
			EmbedProvider:  "simple",
			EmbeddingModel: "simple",
			LLMProvider:    "simple",
			LLMModel:       "simple",
			VectorDim:      256,
			TimeoutSeconds: 5,
			MaxRetries:     1,
			RetryDelayMS:   1,
		},
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret",
			TokenTTLHours:        1,
			Operator:             testOperator,
			OperatorPasswordHash: hash,
		},
	}

	src, err := corpus.NewSource(cfg.Corpus)
	require.NoError(t, err)
	emb, err := ai.NewEmbedder(cfg.AI.EmbedProvider, cfg.AI.EmbeddingModel,
		map[string]interface{}{"dim": cfg.AI.VectorDim})
	require.NoError(t, err)
	gen, err := ai.NewGenerator(cfg.AI.LLMProvider, cfg.AI.LLMModel, nil)
	require.NoError(t, err)

	p, err := pipeline.New(cfg, pipeline.Deps{Source: src, Embedder: emb, Generator: gen})
	require.NoError(t, err)
	require.NoError(t, p.Build(context.Background()))

	deps := handler.RouterDeps{
		Ask:           handler.NewAskHandler(p),
		Admin:         handler.NewAdminHandler(p, cfg.Auth),
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
		AskRateWindow: askRateWindow,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine, p
}

func setupRouter(t *testing.T) (http.Handler, *pipeline.Pipeline) {
	return newRouter(t, 0)
}

type apiEnvelope struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

func doJSON(t *testing.T, router http.Handler, method, path, body, token string) apiEnvelope {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var env apiEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}
