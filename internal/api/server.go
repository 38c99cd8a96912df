package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/clankers-project/clankers/internal/config"
	"github.com/clankers-project/clankers/internal/network"
	"github.com/clankers-project/clankers/internal/stats"
	"github.com/clankers-project/clankers/internal/util"
)

const shutdownTimeout = 10 * time.Second

// Server is the status API of a running fleet.
type Server struct {
	cfg      *config.Config
	stats    *stats.Collector
	registry *network.ConnectionRegistry
	logger   zerolog.Logger

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server. Nothing listens until Start.
func NewServer(cfg *config.Config, collector *stats.Collector, registry *network.ConnectionRegistry) *Server {
	if strings.EqualFold(cfg.Logging.Level, "debug") || strings.EqualFold(cfg.Logging.Level, "trace") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		stats:    collector,
		registry: registry,
		logger:   util.ComponentLogger("api"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the router, for serving without Start.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.API.Listen)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("status API starting")

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("status API shutdown")
		}
	})
	defer stop()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))
	router.Use(SecurityHeaders())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(NewRateLimiter(s.cfg.API.RateLimitRPS).Middleware())

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/system", s.handleGetSystemInfo)
	}

	monitor := router.Group("/api")
	{
		monitor.GET("/stats", s.handleGetStats)
		monitor.GET("/sessions", s.handleGetSessions)
		monitor.GET("/sessions/:slot", s.handleGetSession)
		monitor.GET("/usage", s.handleGetUsage)
		monitor.GET("/logs", s.handleGetLogEntries)
		monitor.GET("/config", s.handleGetConfig)
	}

	control := router.Group("/api/control")
	{
		control.POST("/sessions/:slot/disconnect", s.handleDisconnectSession)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}
