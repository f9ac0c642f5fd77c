package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/logger"
)

// AnalyzeResponse is the body of POST /api/query/analyze.
type AnalyzeResponse struct {
	Query              string               `json:"query"`
	Analysis           domain.QueryAnalysis `json:"analysis"`
	RecommendedMode    domain.QueryMode     `json:"recommended_mode"`
	RecommendedSources []string             `json:"recommended_sources"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	QueryStats domain.QueryStats `json:"query_stats"`
	CacheStats domain.CacheStats `json:"cache_stats"`
}

// ConfigResponse is the body of GET /api/config. Secrets are redacted.
type ConfigResponse struct {
	Sources        []domain.SourceConfig `json:"sources"`
	RankingWeights domain.RankingWeights `json:"ranking_weights"`
	Cache          CacheConfig           `json:"cache"`
}

// CacheConfig describes the result cache.
type CacheConfig struct {
	Backend string  `json:"backend"`
	TTL     float64 `json:"ttl"`
	MaxSize int     `json:"max_size"`
}

// StoreRequest is the body of POST /api/memory/:source.
type StoreRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// StoreResponse is returned after a memory is stored.
type StoreResponse struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "memquery",
		"version": s.config.Version,
		"status":  "running",
		"endpoints": []string{
			"POST /api/query",
			"POST /api/query/analyze",
			"GET /health",
			"GET /api/stats",
			"GET /api/config",
			"DELETE /api/cache",
			"POST /api/memory/:source",
		},
	})
}

// handleHealth probes every source. With cached=true it serves the last
// scheduled probe when there is one.
func (s *Server) handleHealth(c *gin.Context) {
	var (
		report domain.HealthReport
		ok     bool
	)
	if c.Query("cached") == "true" {
		if hc, isCache := s.query.(HealthCache); isCache {
			report, ok = hc.LastHealth()
		}
	}
	if !ok {
		report = s.query.Health(c.Request.Context())
	}

	status := http.StatusOK
	if !report.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (s *Server) handleQuery(c *gin.Context) {
	var req domain.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.query.Query(c.Request.Context(), req)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleAnalyze reads the query from ?query= or a JSON body.
func (s *Server) handleAnalyze(c *gin.Context) {
	query := c.Query("query")
	if query == "" && c.Request.ContentLength != 0 {
		var body struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			query = body.Query
		}
	}
	if strings.TrimSpace(query) == "" {
		s.fail(c, http.StatusBadRequest, "query parameter required")
		return
	}

	analysis := s.query.Analyze(c.Request.Context(), query)
	sources := analysis.RecommendedSources
	if sources == nil {
		sources = []string{}
	}
	c.JSON(http.StatusOK, AnalyzeResponse{
		Query:              query,
		Analysis:           analysis,
		RecommendedMode:    analysis.RecommendedMode,
		RecommendedSources: sources,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		QueryStats: s.query.Stats(),
		CacheStats: s.query.CacheStats(c.Request.Context()),
	})
}

func (s *Server) handleConfig(c *gin.Context) {
	sources := s.query.Sources()
	redacted := make([]domain.SourceConfig, len(sources))
	for i, src := range sources {
		redacted[i] = src.Redacted()
	}

	c.JSON(http.StatusOK, ConfigResponse{
		Sources:        redacted,
		RankingWeights: s.query.RankingWeights(),
		Cache: CacheConfig{
			Backend: s.config.Cache.Backend.String(),
			TTL:     s.config.Cache.TTL.Seconds(),
			MaxSize: s.config.Cache.MaxSize,
		},
	})
}

func (s *Server) handleClearCache(c *gin.Context) {
	if err := s.query.ClearCache(c.Request.Context()); err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *Server) handleStore(c *gin.Context) {
	source := c.Param("source")

	var req StoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := s.query.Store(c.Request.Context(), source, req.Content, req.Metadata)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, StoreResponse{ID: id, Source: source})
}

func (s *Server) failErr(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	s.fail(c, status, err.Error())
}

func (s *Server) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     msg,
		RequestID: c.GetString(RequestIDHeader),
	})
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownSource), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSourceDisabled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, domain.ErrSourceTimeout),
		errors.Is(err, domain.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
