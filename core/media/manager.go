package media

import (
	"context"
	"fmt"
	"sync"

	"mediabridge/logger"
)

const (
	sessionsChangedKey       = "session_token"
	currentSessionChangedKey = "current_session_token"
)

// ManagerStore lazily holds the platform session manager together with the
// tokens of its two manager-level subscriptions.
type ManagerStore struct {
	platform Platform

	initMu  sync.Mutex // serializes first-time initialization only
	mu      sync.Mutex // guards manager and tokens
	manager Manager
	tokens  map[string]Token
}

// NewManagerStore creates a store that requests its manager from p on first use.
func NewManagerStore(p Platform) *ManagerStore {
	return &ManagerStore{
		platform: p,
		tokens:   make(map[string]Token),
	}
}

// Get returns the shared manager, requesting it from the platform on the first
// call. Concurrent first callers wait for the same request. A failed request is
// not cached so the next poll tries again.
func (s *ManagerStore) Get(ctx context.Context) (Manager, error) {
	if m := s.cached(); m != nil {
		return m, nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if m := s.cached(); m != nil {
		return m, nil
	}

	m, err := s.platform.RequestManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoManager, err)
	}
	if m == nil {
		return nil, ErrNoManager
	}

	s.mu.Lock()
	s.manager = m
	s.mu.Unlock()

	logger.Info("media session manager initialized")
	return m, nil
}

func (s *ManagerStore) cached() Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// EnsureSubscriptions replaces the manager-level subscriptions: previously
// stored tokens are cancelled and two new ones are installed, so handler is
// always the most recently supplied one.
func (s *ManagerStore) EnsureSubscriptions(ctx context.Context, handler Handler) error {
	m, err := s.Get(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.tokens
	s.tokens = make(map[string]Token)
	s.mu.Unlock()

	s.cancel(m, old)

	sessionsTok, err := m.OnSessionsChanged(handler)
	if err != nil {
		return fmt.Errorf("subscribe sessions changed: %w", err)
	}
	currentTok, err := m.OnCurrentSessionChanged(handler)
	if err != nil {
		if rmErr := m.RemoveSessionsChanged(sessionsTok); rmErr != nil {
			logger.Warn("failed to roll back sessions changed subscription", logger.ErrorField(rmErr))
		}
		return fmt.Errorf("subscribe current session changed: %w", err)
	}

	s.mu.Lock()
	// a concurrent call may have stored its own tokens since we cleared the map
	displaced := s.tokens
	s.tokens = map[string]Token{
		sessionsChangedKey:       sessionsTok,
		currentSessionChangedKey: currentTok,
	}
	s.mu.Unlock()

	s.cancel(m, displaced)
	return nil
}

// Tokens returns a copy of the stored manager tokens.
func (s *ManagerStore) Tokens() map[string]Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Token, len(s.tokens))
	for k, v := range s.tokens {
		out[k] = v
	}
	return out
}

// Close cancels the stored manager subscriptions.
func (s *ManagerStore) Close() {
	s.mu.Lock()
	m := s.manager
	old := s.tokens
	s.tokens = make(map[string]Token)
	s.mu.Unlock()

	if m != nil {
		s.cancel(m, old)
	}
}

func (s *ManagerStore) cancel(m Manager, tokens map[string]Token) {
	if tok, ok := tokens[sessionsChangedKey]; ok {
		if err := m.RemoveSessionsChanged(tok); err != nil {
			logger.Warn("failed to remove sessions changed listener",
				logger.Int64("token", int64(tok)), logger.ErrorField(err))
		}
	}
	if tok, ok := tokens[currentSessionChangedKey]; ok {
		if err := m.RemoveCurrentSessionChanged(tok); err != nil {
			logger.Warn("failed to remove current session changed listener",
				logger.Int64("token", int64(tok)), logger.ErrorField(err))
		}
	}
}
