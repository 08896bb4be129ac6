package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

type storedDocument struct {
	doc *domain.Document
	seq int
}

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Documents are deep-copied on the way in and out so callers never share
// a tree with the store.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]storedDocument
	seq       int
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]storedDocument),
	}
}

// SaveDocument stores a document, replacing any previous tree for its ID.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}
	c := doc.Clone()
	c.IsActive = false

	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seq
	if prev, ok := s.documents[doc.ID]; ok {
		seq = prev.seq
	} else {
		s.seq++
	}
	s.documents[doc.ID] = storedDocument{doc: c, seq: seq}
	return nil
}

// GetDocument retrieves a document and its tree by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return stored.doc.Clone(), nil
}

// ListDocuments returns document summaries oldest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	stored := make([]storedDocument, 0, len(s.documents))
	for _, d := range s.documents {
		stored = append(stored, d)
	}
	s.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool {
		a, b := stored[i], stored[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.Before(b.doc.CreatedAt)
		}
		return a.seq < b.seq
	})

	result := make([]domain.Document, len(stored))
	for i, d := range stored {
		result[i] = *d.doc.Summary()
	}
	return result, nil
}

// DeleteDocument removes a document and its tree.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	return nil
}
