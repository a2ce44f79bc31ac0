package router

import (
	"net/http"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/config"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/handler"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/metrics"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/middleware"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/response"
	"github.com/Wajahat883/EDU-PREP-sub001/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
	// Monitor is nil when Postgres or Redis is unavailable.
	Monitor *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.MetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.PrometheusHandler())

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	// ─── 1. Session API (JWT + per-user rate limit) ────────────────────
	sessions := router.Group("/api/v1/sessions")
	sessions.Use(
		middleware.RequireJWT(authService),
		limiter.Middleware(),
		middleware.Brotli(),
	)
	{
		sessions.POST("", handlers.Session.CreateSession)
		sessions.GET("", handlers.Session.ListSessions)
		sessions.GET("/:session_id", handlers.Session.GetSession)
		sessions.POST("/:session_id/answers", handlers.Session.SubmitAnswer)
		sessions.POST("/:session_id/hints", handlers.Session.RequestHint)
		sessions.POST("/:session_id/flags", handlers.Session.FlagQuestion)
		sessions.POST("/:session_id/pause", handlers.Session.Pause)
		sessions.POST("/:session_id/resume", handlers.Session.Resume)
		sessions.POST("/:session_id/complete", handlers.Session.Complete)
		sessions.GET("/:session_id/results", handlers.Session.GetResults)
		sessions.POST("/:session_id/abandon", handlers.Session.Abandon)
	}

	// ─── 2. Completion monitor (service tokens only) ────────────────────
	if handlers.Monitor != nil {
		monitor := router.Group("/api/v1/monitor")
		monitor.Use(middleware.RequireJWT(authService))
		{
			monitor.GET("/exam-types/:exam_type_id/stream", handlers.Monitor.ExamTypeStream)
		}
	}

	// ─── 3. WebSocket Group (token query auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/events", handlers.WS.SessionEvents)
	}

	return router
}
