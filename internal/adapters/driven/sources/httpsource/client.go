// Package httpsource is the shared HTTP/JSON client behind the REST memory
// source adapters (Cognee, Memento, MemOS, LlamaCloud) and the remote
// embedding services.
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// Default configuration values.
const (
	// DefaultClientTimeout caps a single HTTP exchange. Per-call deadlines
	// come from the request context and are normally shorter.
	DefaultClientTimeout = 30 * time.Second

	// HealthPath is probed by HealthCheck.
	HealthPath = "/health"

	maxErrorBody = 512
)

// StatusError is a non-2xx response from a memory source.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: API returned status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: API returned status %d: %s", e.Source, e.StatusCode, e.Body)
}

// Unwrap maps the status to a domain error so callers can decide whether
// to retry: client errors are permanent, 429 and 5xx are transient.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.StatusCode == http.StatusNotFound,
		e.StatusCode == http.StatusMethodNotAllowed,
		e.StatusCode == http.StatusNotImplemented:
		return domain.ErrNotImplemented
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return domain.ErrInvalidInput
	default:
		return domain.ErrSourceUnavailable
	}
}

// Client talks JSON to one memory source.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// New creates a client for the source described by cfg.
func New(cfg domain.SourceConfig, opts ...Option) *Client {
	c := &Client{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: DefaultClientTimeout,
		},
		limiter: NewRateLimiter(cfg.RateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the source name used in errors.
func (c *Client) Name() string {
	return c.name
}

// BaseURL returns the source's base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON sends body to path and decodes the response into out.
// out may be nil when the response body is not needed.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(jsonBody), out)
}

// GetJSON fetches path and decodes the response into out, which may be nil.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w: %w", c.name, domain.ErrRateLimited, err)
	}

	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", c.name, domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.RecordRateLimitError(retryAfter(resp.Header.Get("Retry-After")))
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Source: c.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// HealthCheck reports whether GET /health answers 200. It never panics
// and treats every transport error as unhealthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, http.NoBody)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return time.Until(at)
	}
	return 0
}
