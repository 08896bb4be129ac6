package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// documentLocks hands out one RWMutex per document id so unrelated
// documents never contend.
type documentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newDocumentLocks() *documentLocks {
	return &documentLocks{locks: make(map[string]*sync.RWMutex)}
}

func (l *documentLocks) get(id string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[id] = m
	}
	return m
}

func (l *documentLocks) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, id)
}

// Library couples the document store with a session's active pointer and
// guards each document tree with its own lock. Readers get deep-copied
// snapshots; writers replace a whole tree under the document's write lock.
type Library struct {
	docs    driven.DocumentStore
	session driven.SessionStore
	locks   *documentLocks
}

// NewLibrary creates a library over the given stores.
func NewLibrary(docs driven.DocumentStore, session driven.SessionStore) *Library {
	return &Library{
		docs:    docs,
		session: session,
		locks:   newDocumentLocks(),
	}
}

// ResolveID returns id, or the session's active document when id is empty.
func (l *Library) ResolveID(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	active, err := l.session.ActiveDocument(ctx)
	if err != nil {
		return "", fmt.Errorf("get active document: %w", err)
	}
	if active == "" {
		return "", domain.ErrNoActiveDocument
	}
	return active, nil
}

// Snapshot returns a private copy of the document tree.
func (l *Library) Snapshot(ctx context.Context, id string) (*domain.Document, error) {
	id, err := l.ResolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := l.locks.get(id)
	lock.RLock()
	doc, err := l.docs.GetDocument(ctx, id)
	lock.RUnlock()
	if err != nil {
		return nil, err
	}

	l.markActive(ctx, doc)
	return doc, nil
}

// Replace stores doc as the document's complete tree.
// When mustExist is set and the document was deleted meanwhile, it returns ErrNotFound.
func (l *Library) Replace(ctx context.Context, doc *domain.Document, mustExist bool) error {
	lock := l.locks.get(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	if mustExist {
		if _, err := l.docs.GetDocument(ctx, doc.ID); err != nil {
			return err
		}
	}
	return l.docs.SaveDocument(ctx, doc)
}

// Remove deletes a document. When it was active, the most recently
// created remaining document becomes active, or none when the library is empty.
func (l *Library) Remove(ctx context.Context, id string) error {
	lock := l.locks.get(id)
	lock.Lock()
	err := l.docs.DeleteDocument(ctx, id)
	lock.Unlock()
	if err != nil {
		return err
	}
	l.locks.forget(id)

	active, err := l.session.ActiveDocument(ctx)
	if err != nil {
		return fmt.Errorf("get active document: %w", err)
	}
	if active != id {
		return nil
	}

	next := ""
	remaining, err := l.docs.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	if len(remaining) > 0 {
		next = remaining[len(remaining)-1].ID
	}
	return l.session.SetActiveDocument(ctx, next)
}

// List returns document summaries in creation order.
func (l *Library) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := l.docs.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	active, err := l.session.ActiveDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active document: %w", err)
	}
	for i := range docs {
		docs[i].IsActive = docs[i].ID == active
	}
	return docs, nil
}

// Activate points the session at an existing document.
func (l *Library) Activate(ctx context.Context, id string) error {
	if _, err := l.docs.GetDocument(ctx, id); err != nil {
		return err
	}
	return l.session.SetActiveDocument(ctx, id)
}

// ActivateIfNone makes id active when the session has no active document.
func (l *Library) ActivateIfNone(ctx context.Context, id string) (bool, error) {
	active, err := l.session.ActiveDocument(ctx)
	if err != nil {
		return false, fmt.Errorf("get active document: %w", err)
	}
	if active != "" {
		return false, nil
	}
	if err := l.session.SetActiveDocument(ctx, id); err != nil {
		return false, fmt.Errorf("set active document: %w", err)
	}
	return true, nil
}

func (l *Library) markActive(ctx context.Context, doc *domain.Document) {
	active, err := l.session.ActiveDocument(ctx)
	doc.IsActive = err == nil && active == doc.ID
}
