// Package mcp provides an MCP (Model Context Protocol) server adapter for
// boltindex. It lets AI assistants search indexes, start plans and follow
// executions.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrEngineUnavailable is returned by execution tools when no engine is wired.
var ErrEngineUnavailable = errors.New("mcp: execution engine is not configured")
