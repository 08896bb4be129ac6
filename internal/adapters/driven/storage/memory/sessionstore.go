package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore keeps the active document pointer in memory.
type SessionStore struct {
	mu     sync.RWMutex
	active string
}

// NewSessionStore creates a session with no active document.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// ActiveDocument returns the active document ID, or "".
func (s *SessionStore) ActiveDocument(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, nil
}

// SetActiveDocument replaces the active document ID.
func (s *SessionStore) SetActiveDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
	return nil
}
