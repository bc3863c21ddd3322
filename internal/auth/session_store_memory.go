package auth

import (
	"context"
	"sync"
)

// NewInMemorySessionStore returns a SessionStore that keeps the session in memory.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{}
}

// InMemorySessionStore implements SessionStore for tests and command-line use.
type InMemorySessionStore struct {
	mu      sync.RWMutex
	session *Session
}

// Save persists the provided session, replacing any previous one.
func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()
	return nil
}

// Load returns the persisted session.
func (s *InMemorySessionStore) Load(context.Context) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, ErrSessionNotFound
	}
	return *s.session, nil
}

// Delete removes the persisted session.
func (s *InMemorySessionStore) Delete(context.Context) error {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	return nil
}

// Has reports whether a session is persisted. Useful for tests.
func (s *InMemorySessionStore) Has() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}
