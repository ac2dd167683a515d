package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

// MemoryStore is a process-local Store for the terminal dashboard and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Session
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]Session), now: time.Now}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session store: %s: %w", id, apperrors.ErrNotFound)
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, id)
		return nil, fmt.Errorf("session store: %s: %w", id, apperrors.ErrNotFound)
	}
	return &sess, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
