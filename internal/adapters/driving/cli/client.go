package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/memquery/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/memquery/internal/core/domain"
)

const clientTimeout = 60 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// Client calls a memquery server's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

// Query runs a query.
func (c *Client) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	var resp domain.QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Analyze classifies a query without running it.
func (c *Client) Analyze(ctx context.Context, query string) (*httpapi.AnalyzeResponse, error) {
	var resp httpapi.AnalyzeResponse
	path := "/api/query/analyze?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health probes the server. An unhealthy report is returned along with
// its 503 status as a nil error.
func (c *Client) Health(ctx context.Context, cached bool) (*domain.HealthReport, error) {
	path := "/health"
	if cached {
		path += "?cached=true"
	}

	var report domain.HealthReport
	err := c.do(ctx, http.MethodGet, path, nil, &report)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable && report.Service != "" {
		return &report, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Stats returns query and cache counters.
func (c *Client) Stats(ctx context.Context) (*httpapi.StatsResponse, error) {
	var resp httpapi.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Config returns the server's redacted configuration.
func (c *Client) Config(ctx context.Context) (*httpapi.ConfigResponse, error) {
	var resp httpapi.ConfigResponse
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearCache empties the result cache.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/cache", nil, nil)
}

// Store saves content into a source.
func (c *Client) Store(ctx context.Context, source, content string, metadata map[string]any) (*httpapi.StoreResponse, error) {
	var resp httpapi.StoreResponse
	body := httpapi.StoreRequest{Content: content, Metadata: metadata}
	if err := c.do(ctx, http.MethodPost, "/api/memory/"+url.PathEscape(source), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends body as JSON and decodes the response into out. Error bodies
// are decoded into out as well when they parse, so callers can read
// partial results such as an unhealthy report.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to %s: %w (is \"memquery serve\" running?)", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp httpapi.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: errResp.Error, RequestID: errResp.RequestID}
		}
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
