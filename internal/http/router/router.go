package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/faultline/internal/http/handler"
	"basegraph.app/faultline/internal/http/middleware"
	"basegraph.app/faultline/internal/service"
)

type RouterConfig struct {
	APIKeys map[string]string
}

func SetupRoutes(router *gin.Engine, ingest service.IngestService, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAPIKey(cfg.APIKeys))
	{
		FailureRouter(v1, handler.NewFailureHandler(ingest))
	}
}

func FailureRouter(rg *gin.RouterGroup, h *handler.FailureHandler) {
	rg.POST("/failures", h.Submit)
	rg.GET("/patterns/:id", h.GetPattern)
}
