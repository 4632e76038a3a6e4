// Package session issues and tracks bearer tokens for the projection
// service.
//
// The flow:
//  1. Client presents an API key
//  2. The manager validates it and returns a session token (1-hour TTL)
//  3. The token authenticates subsequent calls
//  4. Near expiry the token can be refreshed for a fresh one
package session

import (
	"time"
)

// Session represents one authenticated client session.
type Session struct {
	// Token is the bearer token presented on subsequent calls.
	Token string

	// IssuedAt is when the session was created.
	IssuedAt time.Time

	// ExpiresAt is when the session expires.
	ExpiresAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// TimeUntilExpiry returns the duration until the session expires.
func (s *Session) TimeUntilExpiry() time.Duration {
	return time.Until(s.ExpiresAt)
}

// Config holds configuration for the session manager.
type Config struct {
	// APIKeys lists the accepted client keys. At least one is required.
	APIKeys []string

	// TokenTTL is how long sessions stay valid (default: 1 hour).
	TokenTTL time.Duration

	// RefreshWindow is how long before expiry a session becomes eligible
	// for refresh (default: 15 minutes).
	RefreshWindow time.Duration
}

// DefaultConfig returns sensible defaults; API keys must still be supplied.
func DefaultConfig() Config {
	return Config{
		TokenTTL:      time.Hour,
		RefreshWindow: 15 * time.Minute,
	}
}

// Validate fills zero durations with defaults and checks the key list.
func (c *Config) Validate() error {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.RefreshWindow <= 0 {
		c.RefreshWindow = 15 * time.Minute
	}
	if len(c.APIKeys) == 0 {
		return ErrNoAPIKeys
	}
	for _, k := range c.APIKeys {
		if k == "" {
			return ErrNoAPIKeys
		}
	}
	return nil
}
