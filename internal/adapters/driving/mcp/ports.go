package mcp

import (
	"net/http"

	"github.com/custodia-labs/querynest/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Documents manages uploads and the active document.
	Documents driving.DocumentService

	// Queries answers questions and produces summaries.
	Queries driving.QueryService

	// Metrics is served at /metrics in HTTP mode when set.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Documents == nil {
		return ErrMissingDocumentService
	}
	if p.Queries == nil {
		return ErrMissingQueryService
	}
	return nil
}
