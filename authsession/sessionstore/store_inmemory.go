package sessionstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// InMemoryStore is a thread-safe in-memory implementation of Store. Sessions
// do not survive a restart; it backs tests and the explicit "memory" backend.
type InMemoryStore struct {
	mu      sync.RWMutex
	session *Session
	pending string
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory session store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveSession(ctx context.Context, session Session) error {
	if session.AccessToken == "" {
		return errors.New("session access token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external modifications
	copied := session
	s.session = &copied
	return nil
}

func (s *InMemoryStore) LoadSession(ctx context.Context) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, nil
	}
	copied := *s.session
	return &copied, nil
}

func (s *InMemoryStore) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}

func (s *InMemoryStore) SavePendingState(ctx context.Context, nonce string) error {
	if nonce == "" {
		return errors.New("nonce cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nonce
	return nil
}

func (s *InMemoryStore) LoadPendingState(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pending, nil
}

func (s *InMemoryStore) ClearPendingState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = ""
	return nil
}
