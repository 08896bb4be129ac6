// Package domain defines the core business entities for QueryNest.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded document owning its ordered Sections
//   - Section: A titled span of document text owning its Chunks
//   - Chunk: An embedded span of section text
//   - QueryResult and ValidationResult: Transient query responses
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
