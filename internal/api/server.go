package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/middleware"
	"github.com/clinical-risk-scorer/internal/service"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	config    *domain.Config
	evaluator *service.Evaluator
	router    *gin.Engine
	server    *http.Server
	sessions  *sessionHandler
	logger    *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, evaluator *service.Evaluator, logger *logrus.Logger) (*Server, error) {
	if logger == nil {
		logger = logrus.New()
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())
	router.Use(middleware.SecurityHeaders())
	if c := corsConfig(cfg.Server.AllowedOrigins); c != nil {
		router.Use(cors.New(*c))
	}
	router.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	if cfg.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimit, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		router.Use(limiter.Middleware())
	}

	server := &Server{
		config:    cfg,
		evaluator: evaluator,
		router:    router,
		sessions:  newSessionHandler(evaluator, cfg.Server, logger),
		logger:    logger,
	}

	server.setupRoutes()

	return server, nil
}

func corsConfig(origins []string) *cors.Config {
	if len(origins) == 0 {
		return nil
	}
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return &c
		}
	}
	c.AllowOrigins = origins
	return &c
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	s.sessions.closeAll()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/domains", s.handleListDomains)
		v1.GET("/domains/:domain", s.handleDescribeDomain)
		v1.POST("/evaluate/:domain", s.handleEvaluate)
		v1.POST("/reports/thyroid", s.handleThyroidReport)

		v1.GET("/audit/stats", s.handleAuditStats)
		v1.GET("/audit/records", s.handleAuditRecords)
		v1.GET("/audit/records/:id", s.handleAuditRecord)

		v1.GET("/session", s.sessions.handle)
	}
}
