package domain

import (
	"context"
	"errors"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedDocument indicates the extracted text is empty or has no
	// usable characters. Fatal to that upload.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrUnsupportedFormat indicates no text extractor handles the file type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptFile indicates the file type is known but the content is unreadable.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrEmbeddingUnavailable indicates the embedding capability failed or timed out.
	// Retryable by the caller.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates the generative capability failed,
	// timed out or returned empty output. Retryable by the caller.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrEmbeddingMismatch indicates embeddings from different models or
	// dimensions would be compared. The document must be re-indexed.
	ErrEmbeddingMismatch = errors.New("embedding model mismatch")

	// ErrEmptyIndex indicates the document has no chunks to search.
	ErrEmptyIndex = errors.New("empty index")

	// ErrSectionNotFound indicates a section filter matched no section.
	// Reported as a warning; the query falls back to the whole document.
	ErrSectionNotFound = errors.New("section not found")

	// ErrNoActiveDocument indicates no document id was given and none is active.
	ErrNoActiveDocument = errors.New("no active document")
)

// Kind classifies an error for callers that must tell
// bad input from missing data from an unavailable service.
type Kind string

// Error kinds.
const (
	KindBadInput    Kind = "bad_input"
	KindNoData      Kind = "no_data"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// ErrorKind returns the Kind of err.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmbeddingUnavailable), errors.Is(err, ErrGenerationUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return KindUnavailable
	case errors.Is(err, ErrEmptyIndex), errors.Is(err, ErrNoActiveDocument):
		return KindNoData
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedDocument),
		errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrCorruptFile),
		errors.Is(err, ErrEmbeddingMismatch):
		return KindBadInput
	default:
		return KindInternal
	}
}

// SectionError is a failure to index a single section.
type SectionError struct {
	Index int
	Title string
	Err   error
}

func (e *SectionError) Error() string {
	return "section " + e.Title + ": " + e.Err.Error()
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

// IndexError aggregates per-section indexing failures.
// The document is still stored; only the listed sections lack chunks.
type IndexError struct {
	Sections []*SectionError
}

func (e *IndexError) Error() string {
	msgs := make([]string, len(e.Sections))
	for i, s := range e.Sections {
		msgs[i] = s.Error()
	}
	return "partial index: " + strings.Join(msgs, "; ")
}

// Unwrap exposes every section failure to errors.Is and errors.As.
func (e *IndexError) Unwrap() []error {
	errs := make([]error, len(e.Sections))
	for i, s := range e.Sections {
		errs[i] = s
	}
	return errs
}
