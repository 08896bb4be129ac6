// Package mcp provides an MCP (Model Context Protocol) server adapter for QueryNest.
// It lets AI assistants upload documents, ask questions about them and
// request summaries.
package mcp

import "errors"

// ErrMissingDocumentService is returned when the document service is not provided.
var ErrMissingDocumentService = errors.New("mcp: document service is required")

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
