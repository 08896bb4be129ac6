package driven

import (
	"context"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

// SectionDetector splits extracted text into ordered, titled sections
// whose spans cover the text exactly.
type SectionDetector interface {
	// Detect returns at least one section, or domain.ErrMalformedDocument
	// when the text has no usable characters.
	Detect(text string) ([]domain.Section, error)
}

// PostProcessor processes section text to produce chunks.
// PostProcessors are chained in a pipeline (chunking, then embedding).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes section text and returns chunks.
	// If the processor creates chunks (e.g., chunker), it receives nil and returns new chunks.
	// If the processor annotates chunks (e.g., embedder), it receives and returns chunks.
	Process(ctx context.Context, text string, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs section text through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, text string) ([]domain.Chunk, error)
}
