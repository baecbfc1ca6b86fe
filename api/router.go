package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lyricsync/config"
	"lyricsync/metrics"
	"lyricsync/task"
)

func SetupRouter(tm *task.Manager, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(RequestLogger(logger.Named("http")), gin.Recovery(), CORS())
	h := NewHandler(tm, cfg, logger.Named("api"))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Stored audio is public; task ids are unguessable.
	r.GET("/uploads/:filename", h.handleGetFile)

	v := r.Group("/")
	v.Use(AuthMiddleware(cfg))
	{
		v.POST("/transcribe", h.handleTranscribe)
		v.GET("/progress/:taskId", h.handleGetProgress)
		v.GET("/result/:taskId", h.handleGetResult)
		v.GET("/tasks", h.handleListTasks)
	}
	return r
}
