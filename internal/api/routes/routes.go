package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"indiflow/internal/api/handlers"
	"indiflow/internal/api/middleware"
	"indiflow/internal/config"
)

func SetupRoutes(cfg *config.Config, h *handlers.Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger.Named("http")))
	router.Use(middleware.CORSMiddleware())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.HealthCheck)

		protected := v1.Group("")
		if cfg.JWT.Enabled {
			protected.Use(middleware.AuthMiddleware([]byte(cfg.JWT.Secret)))
		}
		{
			flows := protected.Group("/flows")
			{
				flows.GET("", h.GetFlows)
				flows.GET("/:id", h.GetFlow)
				flows.PUT("/:id", h.UpdateFlow)
				flows.DELETE("/:id", h.DeleteFlow)
				flows.POST("/:id/play", h.PlayFlow)
				flows.GET("/:id/fragile-locators", h.GetFragileLocators)
			}

			recording := protected.Group("/recording")
			{
				recording.POST("/start", h.StartRecording)
				recording.POST("/stop", h.StopRecording)
				recording.GET("/status", h.GetRecordingStatus)
			}

			playback := protected.Group("/playback")
			{
				playback.POST("/stop", h.StopPlayback)
				playback.POST("/resume", h.ResumePlayback)
				playback.GET("/status", h.GetPlaybackStatus)
			}

			protected.POST("/network-calls", h.AddNetworkCall)
			protected.GET("/ws/events", h.EventsWebSocket)
		}
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
