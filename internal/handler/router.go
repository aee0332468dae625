package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seoulmedi/hosqa/internal/middleware"
)

type RouterDeps struct {
	Ask           *AskHandler
	Admin         *AdminHandler
	JWTSecret     []byte
	AskRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", deps.Admin.Health)
	api.GET("/status", deps.Admin.Status)
	api.POST("/ask", middleware.RateLimit(deps.AskRateWindow), deps.Ask.Ask)

	api.POST("/admin/login", deps.Admin.Login)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	adminGroup.POST("/rebuild", deps.Admin.Rebuild)
}
