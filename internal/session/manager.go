package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var (
	// ErrInvalidSession is returned when a token is unknown.
	ErrInvalidSession = errors.New("invalid or unknown session token")
	// ErrSessionExpired is returned when a session has expired.
	ErrSessionExpired = errors.New("session has expired")
	// ErrNotRefreshable is returned when a session is not yet eligible for refresh.
	ErrNotRefreshable = errors.New("session not yet eligible for refresh")
	// ErrBadAPIKey is returned when an API key is not accepted.
	ErrBadAPIKey = errors.New("invalid API key")
	// ErrNoAPIKeys is returned when the manager is configured without keys.
	ErrNoAPIKeys = errors.New("at least one non-empty API key is required")
)

// Manager authenticates API keys and tracks the resulting sessions.
type Manager struct {
	cfg      Config
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a session manager for the given configuration.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}, nil
}

// Create authenticates an API key and opens a new session.
func (m *Manager) Create(ctx context.Context, apiKey string) (*Session, error) {
	if !m.keyAccepted(apiKey) {
		return nil, ErrBadAPIKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.newSessionLocked()
	return copySession(s), nil
}

// Validate returns the session for a token.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrInvalidSession
	}
	if s.IsExpired() {
		return nil, ErrSessionExpired
	}
	return copySession(s), nil
}

// Refresh rotates a session token. Only sessions inside the refresh window
// are eligible; the old token is invalidated.
func (m *Manager) Refresh(ctx context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrInvalidSession
	}
	if s.IsExpired() {
		delete(m.sessions, token)
		return nil, ErrSessionExpired
	}
	if time.Until(s.ExpiresAt) > m.cfg.RefreshWindow {
		return nil, ErrNotRefreshable
	}

	delete(m.sessions, token)
	fresh := m.newSessionLocked()
	return copySession(fresh), nil
}

// Revoke invalidates a session token.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

// CleanupExpired removes expired sessions from memory and returns how many
// were dropped. Run it periodically on long-lived managers.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for token, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, token)
			count++
		}
	}
	return count
}

// ActiveCount returns the number of unexpired sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.sessions {
		if !s.IsExpired() {
			count++
		}
	}
	return count
}

// keyAccepted compares the presented key against every configured key in
// constant time, without stopping at the first match.
func (m *Manager) keyAccepted(apiKey string) bool {
	ok := false
	for _, k := range m.cfg.APIKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(apiKey)) == 1 {
			ok = true
		}
	}
	return ok
}

// newSessionLocked creates and registers a session. Caller must hold m.mu.
func (m *Manager) newSessionLocked() *Session {
	now := time.Now()
	s := &Session{
		Token:     generateToken(),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.TokenTTL),
	}
	m.sessions[s.Token] = s
	return s
}

func copySession(s *Session) *Session {
	c := *s
	return &c
}

// generateToken creates a cryptographically secure session token.
func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
