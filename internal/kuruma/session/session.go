// Package session defines the authenticated session value and the cache
// that keeps active sessions close to the command loop.
package session

import (
	"context"
	"errors"
	"time"
)

// Role is the privilege tier carried by a session.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Lifetime is how long a freshly issued session stays valid.
const Lifetime = 24 * time.Hour

// ErrNotFound is returned by Store.Get for unknown or expired tokens.
var ErrNotFound = errors.New("session: not found")

// Session is server-issued proof of authentication, referenced by an
// opaque token held by the client.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// Store caches active sessions by token. Implementations must be safe for
// concurrent use and must never return an expired session.
type Store interface {
	Get(ctx context.Context, token string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Invalidate(ctx context.Context, token string) error
	Len(ctx context.Context) (int, error)
}
