// Package mcp provides an MCP (Model Context Protocol) server adapter for memquery.
// It lets AI assistants query every configured memory source through one tool.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
