package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seoulmedi/hosqa/internal/middleware"
	"github.com/seoulmedi/hosqa/internal/pkg/errcode"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
	"github.com/seoulmedi/hosqa/internal/pkg/response"
)

var validate = validator.New()

func operatorName(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextOperatorKey)
	name, _ := value.(string)
	return name
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, apperr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, apperr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalid), errors.Is(err, apperr.ErrInvalidConfig):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, apperr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, apperr.ErrNotReady):
		response.Error(c, errcode.ErrNotReady, "index not ready")
	case errors.Is(err, apperr.ErrBuildFailed):
		response.Error(c, errcode.ErrBuildFailed, "index build failed")
	case apperr.IsTransient(err):
		response.Error(c, errcode.ErrAIUnavailable, "ai provider unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
