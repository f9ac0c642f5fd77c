// Package httpapi serves the memquery REST API with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driving"
	"github.com/custodia-labs/memquery/internal/logger"
)

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-ID"

// shutdownTimeout bounds draining in-flight requests.
const shutdownTimeout = 10 * time.Second

// HealthCache is implemented by query services that remember the last
// health report, letting /health?cached=true skip probing.
type HealthCache interface {
	LastHealth() (domain.HealthReport, bool)
}

// Config holds what the API reports about itself.
type Config struct {
	// Version is reported by / and /health.
	Version string

	// Cache is reported by /api/config.
	Cache domain.CacheSettings
}

// Server is the memquery HTTP API.
type Server struct {
	query  driving.QueryService
	config Config
	router *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithMCPHandler mounts an MCP streamable HTTP handler at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.router.Any("/mcp", gin.WrapH(h))
	}
}

// NewServer creates the API server and registers its routes.
func NewServer(query driving.QueryService, cfg Config, opts ...Option) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())

	s := &Server{
		query:  query,
		config: cfg,
		router: router,
	}

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/query", s.handleQuery)
		api.POST("/query/analyze", s.handleAnalyze)
		api.GET("/stats", s.handleStats)
		api.GET("/config", s.handleConfig)
		api.DELETE("/cache", s.handleClearCache)
		api.POST("/memory/:source", s.handleStore)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP API stopped")
	return nil
}

// requestID echoes or assigns X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
