package driving

import (
	"context"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

// DocumentService manages uploaded documents and the active document pointer.
// An empty document ID means the session's active document.
type DocumentService interface {
	// ProcessUpload extracts, sections and indexes an uploaded file.
	// Fails with domain.ErrMalformedDocument (no document is created) when the
	// file has no usable text. Returns the stored document together with a
	// *domain.IndexError when some sections could not be embedded.
	ProcessUpload(ctx context.Context, data []byte, name string) (*domain.Document, error)

	// ProcessFile reads a file from disk and processes it like an upload.
	ProcessFile(ctx context.Context, path string) (*domain.Document, error)

	// ListSections returns section titles in document order.
	ListSections(ctx context.Context, documentID string) ([]string, error)

	// List returns all documents without chunk data.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document with its full tree.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// Delete removes a document. When it was active another document becomes
	// active, or the pointer is cleared when none remain.
	Delete(ctx context.Context, documentID string) error

	// Activate makes a document the active one.
	Activate(ctx context.Context, documentID string) error

	// Active returns the active document, or domain.ErrNoActiveDocument.
	Active(ctx context.Context) (*domain.Document, error)

	// Reindex rebuilds a document's section tree from its stored text and
	// swaps it in once complete.
	Reindex(ctx context.Context, documentID string) (*domain.Document, error)
}
