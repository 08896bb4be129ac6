package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
	"github.com/custodia-labs/querynest/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService ingests uploads and manages the document library.
type DocumentService struct {
	library  *Library
	registry driven.NormaliserRegistry
	detector driven.SectionDetector
	indexer  *ChunkIndexer
	observer driven.PipelineObserver
	now      func() time.Time
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	library *Library,
	registry driven.NormaliserRegistry,
	detector driven.SectionDetector,
	indexer *ChunkIndexer,
) *DocumentService {
	return &DocumentService{
		library:  library,
		registry: registry,
		detector: detector,
		indexer:  indexer,
		observer: noopObserver{},
		now:      time.Now,
	}
}

// SetObserver sets the receiver of pipeline events.
func (s *DocumentService) SetObserver(o driven.PipelineObserver) {
	s.observer = observerOrNoop(o)
}

// ProcessUpload extracts, sections and indexes an uploaded file, then stores it.
//
// A document whose sections only partly indexed is still stored and
// returned together with a *domain.IndexError; Reindex retries it.
// Any other failure stores nothing.
func (s *DocumentService) ProcessUpload(ctx context.Context, data []byte, name string) (*domain.Document, error) {
	logger.Section("Document Upload")

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
	}
	if len(data) == 0 {
		s.observer.DocumentProcessed(statusFailed)
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrMalformedDocument, name)
	}

	extracted, err := s.registry.Normalise(ctx, &domain.Upload{Name: name, Content: data})
	if err != nil {
		s.observer.DocumentProcessed(statusFailed)
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	logger.Debug("Extracted %d bytes of text from %s (%s)", len(extracted.Text), name, extracted.MIMEType)

	now := s.now()
	doc := &domain.Document{
		ID:             uuid.NewString(),
		Name:           name,
		MIMEType:       extracted.MIMEType,
		Text:           extracted.Text,
		PageBoundaries: extracted.PageBoundaries,
		SizeBytes:      int64(len(data)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	idxErr, err := s.build(ctx, doc)
	if err != nil {
		s.observer.DocumentProcessed(statusFailed)
		return nil, err
	}

	if err := s.library.Replace(ctx, doc, false); err != nil {
		s.observer.DocumentProcessed(statusFailed)
		return nil, fmt.Errorf("save document: %w", err)
	}

	// The document is stored; failing to activate it does not undo the upload.
	activated, err := s.library.ActivateIfNone(ctx, doc.ID)
	if err != nil {
		logger.Warn("Stored %s but could not make it active: %v", name, err)
	}
	doc.IsActive = activated

	if idxErr != nil {
		s.observer.DocumentProcessed(statusPartial)
		return doc, idxErr
	}
	s.observer.DocumentProcessed(statusOK)
	logger.Info("Processed %s: %d sections, %d chunks", name, len(doc.Sections), doc.ChunkCount())
	return doc, nil
}

// ProcessFile reads a file from disk and processes it as an upload.
func (s *DocumentService) ProcessFile(ctx context.Context, path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s.ProcessUpload(ctx, data, filepath.Base(path))
}

// build sections and indexes doc in place. A partial index is returned
// as the first value; the second is reserved for failures that leave
// nothing to store.
func (s *DocumentService) build(ctx context.Context, doc *domain.Document) (*domain.IndexError, error) {
	sections, err := s.detector.Detect(doc.Text)
	if err != nil {
		return nil, err
	}
	doc.Sections = sections

	err = s.indexer.IndexDocument(ctx, doc)
	var idxErr *domain.IndexError
	switch {
	case err == nil:
		return nil, nil
	case errors.As(err, &idxErr):
		return idxErr, nil
	default:
		return nil, err
	}
}

// ListSections returns the section titles of a document in order.
func (s *DocumentService) ListSections(ctx context.Context, documentID string) ([]string, error) {
	doc, err := s.library.Snapshot(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return doc.SectionTitles(), nil
}

// List returns all documents without text or chunks.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.library.List(ctx)
}

// Get returns a document; an empty id means the active one.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.library.Snapshot(ctx, documentID)
}

// Delete removes a document and its sections and chunks.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	return s.library.Remove(ctx, documentID)
}

// Activate makes a document the session's active document.
func (s *DocumentService) Activate(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	return s.library.Activate(ctx, documentID)
}

// Active returns the session's active document.
func (s *DocumentService) Active(ctx context.Context) (*domain.Document, error) {
	return s.library.Snapshot(ctx, "")
}

// Reindex rebuilds a document's sections and chunks from its text.
//
// The new tree is built off to the side and swapped in whole, so readers
// see either the old or the new tree. A fully indexed tree is never
// replaced by a partial one; the partial result is returned instead.
func (s *DocumentService) Reindex(ctx context.Context, documentID string) (*domain.Document, error) {
	old, err := s.library.Snapshot(ctx, documentID)
	if err != nil {
		return nil, err
	}
	logger.Section("Reindex")
	seeded := s.indexer.Seed(old)
	logger.Debug("Seeded %d cached embeddings from the previous index", seeded)

	fresh := &domain.Document{
		ID:             old.ID,
		Name:           old.Name,
		MIMEType:       old.MIMEType,
		Text:           old.Text,
		PageBoundaries: old.PageBoundaries,
		SizeBytes:      old.SizeBytes,
		CreatedAt:      old.CreatedAt,
		UpdatedAt:      s.now(),
		IsActive:       old.IsActive,
	}

	idxErr, err := s.build(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if idxErr != nil && old.FullyIndexed() && old.EmbeddingModel == fresh.EmbeddingModel {
		logger.Warn("Reindex of %s incomplete, keeping the previous index", old.Name)
		return old, idxErr
	}

	if err := s.library.Replace(ctx, fresh, true); err != nil {
		return nil, err
	}
	if idxErr != nil {
		return fresh, idxErr
	}
	return fresh, nil
}
