package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carboniq/internal/core"
	"carboniq/pkg/config"
	"carboniq/pkg/logger"
	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

// EventSubmitter queues report events for asynchronous processing
type EventSubmitter interface {
	Submit(ev models.ReportCreated) error
	Depth() int
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker func(ctx context.Context) error

// Server manages the HTTP REST API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	rewards  core.RewardsService
	verifier core.TokenVerifier
	events   EventSubmitter
	health   HealthChecker
	srv      *http.Server
}

// NewServer creates a new HTTP server with all handlers. health may be nil.
func NewServer(
	cfg *config.Config,
	rewards core.RewardsService,
	verifier core.TokenVerifier,
	events EventSubmitter,
	health HealthChecker,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(metricsMiddleware())
	router.Use(corsMiddleware())

	s := &Server{
		router:   router,
		config:   cfg,
		rewards:  rewards,
		verifier: verifier,
		events:   events,
		health:   health,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		// Intake from the report service
		events := v1.Group("/events", AuthMiddleware(s.verifier), RequireRole(models.UserRoleService, models.UserRoleAdmin))
		{
			events.POST("/report-created", s.reportCreated)
		}

		// Per-user reward views; admin and service callers may pass ?user_id=
		rewards := v1.Group("/rewards", AuthMiddleware(s.verifier))
		{
			rewards.GET("/profile", s.getProfile)
			rewards.GET("/stats", s.getStats)
			rewards.GET("/history", s.getHistory)
			rewards.GET("/achievements", s.getAchievements)
			rewards.GET("/my-rank", s.getMyRank)
			rewards.POST("/sync-stats", s.syncStats)
		}
		v1.GET("/rewards/badges", s.getBadgeCatalog)

		// Leaderboards (public)
		leaderboard := v1.Group("/leaderboard")
		{
			leaderboard.GET("", s.getLeaderboard)
			leaderboard.GET("/institutions", s.getInstitutionRankings)
			leaderboard.GET("/recent-achievements", s.getRecentAchievements)
		}

		admin := v1.Group("/admin", AuthMiddleware(s.verifier), RequireRole(models.UserRoleAdmin))
		{
			admin.POST("/recalculate", s.recalculateAll)
		}

		internal := v1.Group("/internal", AuthMiddleware(s.verifier), RequireRole(models.UserRoleService, models.UserRoleAdmin))
		{
			internal.PUT("/signups/:user_id", s.registerSignup)
		}
	}
}

// Start serves HTTP on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Router returns the gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	status, code := "ok", 200
	var dbErr string
	if s.health != nil {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		if err := s.health(ctx); err != nil {
			status, code = "degraded", 503
			dbErr = err.Error()
			logger.WithRequestID(c.Request.Context()).Warn("Health check failed: " + dbErr)
		}
	}

	body := gin.H{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if s.events != nil {
		body["queue_depth"] = s.events.Depth()
	}
	if dbErr != "" {
		body["error"] = dbErr
	}
	c.JSON(code, body)
}
