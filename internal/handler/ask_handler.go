package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/seoulmedi/hosqa/internal/pipeline"
	"github.com/seoulmedi/hosqa/internal/pkg/errcode"
	"github.com/seoulmedi/hosqa/internal/pkg/response"
)

type AskHandler struct {
	pipeline *pipeline.Pipeline
}

func NewAskHandler(p *pipeline.Pipeline) *AskHandler {
	return &AskHandler{pipeline: p}
}

type askRequest struct {
	Question  string   `json:"question" validate:"required,max=2000"`
	TopK      int      `json:"top_k" validate:"omitempty,gte=1,lte=20"`
	Threshold *float64 `json:"similarity_threshold" validate:"omitempty,gte=0,lte=1"`
}

// Ask answers a customer question from the indexed corpus. top_k and
// similarity_threshold fall back to the configured defaults when omitted.
func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	threshold := -1.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	result, err := h.pipeline.AskWith(c.Request.Context(), req.Question, req.TopK, threshold)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
