package driven

import (
	"context"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

// DocumentStore persists documents together with their section and chunk tree.
// The tree is always written and read as a whole.
type DocumentStore interface {
	// SaveDocument stores a document and atomically replaces any previous
	// sections and chunks for the same ID.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document and its full tree by ID.
	// Returns domain.ErrNotFound when absent.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents ordered by creation time,
	// with sections but without text or chunks.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and everything it owns.
	// Returns domain.ErrNotFound when absent.
	DeleteDocument(ctx context.Context, id string) error
}

// SessionStore holds the active document pointer for one session.
// Switching is a single atomic write; the last writer wins.
type SessionStore interface {
	// ActiveDocument returns the active document ID, or "" when none is set.
	ActiveDocument(ctx context.Context) (string, error)

	// SetActiveDocument replaces the active document ID. An empty ID clears it.
	SetActiveDocument(ctx context.Context, id string) error
}
