package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/config"
	"github.com/seoulmedi/hosqa/internal/pipeline"
	"github.com/seoulmedi/hosqa/internal/pkg/errcode"
	"github.com/seoulmedi/hosqa/internal/pkg/jwt"
	"github.com/seoulmedi/hosqa/internal/pkg/password"
	"github.com/seoulmedi/hosqa/internal/pkg/response"
)

type AdminHandler struct {
	pipeline *pipeline.Pipeline
	authCfg  config.AuthConfig
	started  time.Time
}

func NewAdminHandler(p *pipeline.Pipeline, authCfg config.AuthConfig) *AdminHandler {
	return &AdminHandler{pipeline: p, authCfg: authCfg, started: time.Now()}
}

type loginRequest struct {
	Operator string `json:"operator" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Operator != h.authCfg.Operator ||
		h.authCfg.OperatorPasswordHash == "" ||
		password.Compare(h.authCfg.OperatorPasswordHash, req.Password) != nil {
		logutil.GetLogger(c.Request.Context()).Warn("admin login rejected",
			zap.String("operator", req.Operator),
			zap.String("ip", c.ClientIP()),
		)
		response.Error(c, errcode.ErrUnauthorized, "invalid credentials")
		return
	}
	ttl := time.Duration(h.authCfg.TokenTTLHours) * time.Hour
	token, err := jwt.GenerateToken(req.Operator, "admin", []byte(h.authCfg.JWTSecret), ttl)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(ttl).Unix(),
	})
}

// Rebuild kicks off an index rebuild in the background. The build itself
// rejects overlapping runs, the state check here just gives callers a
// clean error without spawning a goroutine.
func (h *AdminHandler) Rebuild(c *gin.Context) {
	state := h.pipeline.State()
	if state == pipeline.StateBuilding || state == pipeline.StateRebuilding {
		response.Error(c, errcode.ErrRebuildRunning, "rebuild already running")
		return
	}
	logutil.GetLogger(c.Request.Context()).Info("rebuild requested",
		zap.String("operator", operatorName(c)),
	)
	go func() {
		if err := h.pipeline.Build(context.Background()); err != nil {
			logutil.GetLogger(context.Background()).Error("rebuild failed", zap.Error(err))
		}
	}()
	response.Success(c, gin.H{"accepted": true})
}

type statusResponse struct {
	pipeline.StatusInfo
	UptimeS int64 `json:"uptime_s"`
}

func (h *AdminHandler) Status(c *gin.Context) {
	response.Success(c, statusResponse{
		StatusInfo: h.pipeline.Status(),
		UptimeS:    int64(time.Since(h.started).Seconds()),
	})
}

func (h *AdminHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"ok": true})
}
