package driving

import (
	"context"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

// AnswerRequest asks a question about a document.
type AnswerRequest struct {
	// DocumentID selects the document. Empty means the active document.
	DocumentID string

	// Query is the natural-language question.
	Query string

	// Section optionally restricts retrieval to a section.
	// Unmatched names fall back to the whole document with a warning.
	Section string

	// TopK overrides the number of retrieved chunks. Zero uses the default.
	TopK int

	// SkipValidation disables answer validation.
	SkipValidation bool
}

// SummaryRequest asks for a summary of a document, section or topic.
type SummaryRequest struct {
	// DocumentID selects the document. Empty means the active document.
	DocumentID string

	// Scope is full, section or topic.
	Scope domain.SummaryScope

	// Target is the section name or topic. Required for topic scope.
	Target string

	// Validate enables summary validation.
	Validate bool
}

// QueryService answers questions and produces summaries.
type QueryService interface {
	// AnswerQuery retrieves relevant chunks, generates an answer and validates it.
	AnswerQuery(ctx context.Context, req AnswerRequest) (*domain.QueryResult, error)

	// Summarize produces a summary for the requested scope.
	Summarize(ctx context.Context, req SummaryRequest) (*domain.QueryResult, error)
}
