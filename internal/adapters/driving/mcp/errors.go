// Package mcp provides an MCP (Model Context Protocol) server adapter for recall.
// It lets AI assistants search notes, ask grounded questions and find
// duplicate notes.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
