package driven

import (
	"context"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

// Normaliser extracts plain text from an uploaded file.
// Each normaliser handles specific MIME types (e.g., PDF, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts text and page boundaries.
	// Fails with domain.ErrCorruptFile when the content cannot be read.
	Normalise(ctx context.Context, upload *domain.Upload) (*NormaliseResult, error)
}

// NormaliseResult contains the output of text extraction.
type NormaliseResult struct {
	// Text is the extracted plain text. Headings are kept on their own lines.
	Text string

	// PageBoundaries holds the byte offset in Text where each page starts.
	PageBoundaries []int

	// Title is a title found in the file's own metadata, if any.
	Title string

	// MIMEType is the detected type the text was extracted from.
	MIMEType string
}
