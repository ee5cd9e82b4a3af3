// Package auth registers users, verifies credentials and issues sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/bdobrica/Kuruma/common/crypto"
	"github.com/bdobrica/Kuruma/internal/kuruma/audit"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

const (
	// MaxFailedAttempts consecutive failures lock an account.
	MaxFailedAttempts = 5
	// LockoutDuration is how long a locked account refuses logins.
	LockoutDuration = 30 * time.Minute
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrMissingNationalID  = errors.New("national ID is required")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var commonPasswords = map[string]bool{
	"password": true, "123456": true, "password123": true, "admin": true, "qwerty": true,
	"letmein": true, "welcome": true, "monkey": true, "1234567890": true, "abc123": true,
}

// UserStore is the storage surface auth needs; *store.Store satisfies it.
type UserStore interface {
	CreateUser(ctx context.Context, u *store.User) error
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	RecordLoginFailure(ctx context.Context, userID int64, attempts int, lockedUntil time.Time) error
	RecordLoginSuccess(ctx context.Context, userID int64, at time.Time) error
	CreateSession(ctx context.Context, userID int64, token string, createdAt, expiresAt time.Time) error
	GetActiveSession(ctx context.Context, token string) (*store.SessionRow, error)
	DeactivateSession(ctx context.Context, token string) (bool, error)
}

// Config wires a Service.
type Config struct {
	Store UserStore
	// Cache defaults to a fresh MemoryStore.
	Cache session.Store
	// MasterKey is the 32-byte AES key sealing national IDs.
	MasterKey []byte
	Hasher    crypto.PasswordHasher
	Notifier  audit.Notifier
	Now       func() time.Time
}

// Service is the auth collaborator.
type Service struct {
	store    UserStore
	cache    session.Store
	key      []byte
	hasher   crypto.PasswordHasher
	notifier audit.Notifier
	now      func() time.Time
}

// New creates a Service. MasterKey must be crypto.KeySize bytes.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	if len(cfg.MasterKey) != crypto.KeySize {
		return nil, fmt.Errorf("auth: master key must be %d bytes, got %d", crypto.KeySize, len(cfg.MasterKey))
	}
	s := &Service{
		store:    cfg.Store,
		cache:    cfg.Cache,
		key:      cfg.MasterKey,
		hasher:   cfg.Hasher,
		notifier: cfg.Notifier,
		now:      cfg.Now,
	}
	if s.cache == nil {
		s.cache = session.NewMemoryStore()
	}
	if s.notifier == nil {
		s.notifier = audit.Noop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// ValidateEmail checks the address format.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the password strength rules. The returned
// error wraps ErrWeakPassword and names the failed rule.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakPassword, MinPasswordLength)
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return fmt.Errorf("%w: must contain at least one uppercase letter", ErrWeakPassword)
	}
	if !lower {
		return fmt.Errorf("%w: must contain at least one lowercase letter", ErrWeakPassword)
	}
	if !digit {
		return fmt.Errorf("%w: must contain at least one number", ErrWeakPassword)
	}
	if commonPasswords[strings.ToLower(password)] {
		return fmt.Errorf("%w: password is too common", ErrWeakPassword)
	}
	return nil
}

// Register creates a user account. A duplicate email surfaces as a
// store.ErrConflict.
func (s *Service) Register(ctx context.Context, email, password, nationalID string) error {
	_, err := s.createUser(ctx, email, password, nationalID, store.RoleUser)
	return err
}

// EnsureAdmin creates the admin account when email is not registered yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, nationalID string) error {
	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}
	if _, err := s.createUser(ctx, email, password, nationalID, store.RoleAdmin); err != nil {
		return err
	}
	slog.Info("admin account created", "email", email)
	return nil
}

func (s *Service) createUser(ctx context.Context, email, password, nationalID, role string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	nationalID = strings.TrimSpace(nationalID)

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if nationalID == "" {
		return nil, ErrMissingNationalID
	}

	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	sealedID, err := crypto.Seal(s.key, nationalID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt national ID: %w", err)
	}

	u := &store.User{
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		NationalID:   sealedID,
		Role:         role,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindUserRegistered,
		UserID:  u.ID,
		Target:  email,
		Details: map[string]any{"role": role},
	})
	return u, nil
}

// Login verifies credentials and issues a session valid for
// session.Lifetime. Unknown email and wrong password are reported the same
// way.
func (s *Service) Login(ctx context.Context, email, password string) (*session.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := s.now()

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.loginFailed(ctx, 0, email, "unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !u.IsActive {
		s.loginFailed(ctx, u.ID, email, "account disabled")
		return nil, ErrAccountDisabled
	}
	if now.Before(u.LockedUntil) {
		s.loginFailed(ctx, u.ID, email, "account locked")
		return nil, ErrAccountLocked
	}

	if !s.hasher.Verify(password, u.PasswordHash, u.PasswordSalt) {
		attempts := u.FailedAttempts + 1
		if !u.LockedUntil.IsZero() {
			// The previous lock has lapsed; count afresh.
			attempts = 1
		}
		var lockUntil time.Time
		if attempts >= MaxFailedAttempts {
			lockUntil = now.Add(LockoutDuration)
		}
		if err := s.store.RecordLoginFailure(ctx, u.ID, attempts, lockUntil); err != nil {
			return nil, err
		}
		s.loginFailed(ctx, u.ID, email, fmt.Sprintf("bad password (attempt %d)", attempts))
		if !lockUntil.IsZero() {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.store.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return nil, err
	}

	token, err := crypto.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	sess := &session.Session{
		Token:     token,
		UserID:    u.ID,
		Email:     u.Email,
		Role:      session.Role(u.Role),
		IssuedAt:  now,
		ExpiresAt: now.Add(session.Lifetime),
	}
	if err := s.store.CreateSession(ctx, u.ID, token, sess.IssuedAt, sess.ExpiresAt); err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, sess); err != nil {
		slog.Warn("failed to cache session", "user_id", u.ID, "err", err)
	}

	s.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindLoginSuccess,
		UserID:  u.ID,
		Target:  email,
		Details: map[string]any{"role": u.Role},
	})
	return sess, nil
}

func (s *Service) loginFailed(ctx context.Context, userID int64, email, reason string) {
	s.notifier.Notify(ctx, audit.Event{
		Kind:   audit.KindLoginFailed,
		UserID: userID,
		Target: email,
		Failed: true,
		Error:  reason,
	})
}

// Logout deactivates token. It reports true only when an active session
// was ended by this call; unknown and already-ended tokens return false.
func (s *Service) Logout(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if err := s.cache.Invalidate(ctx, token); err != nil {
		slog.Warn("failed to evict cached session", "err", err)
	}

	var userID int64
	if row, err := s.store.GetActiveSession(ctx, token); err == nil {
		userID = row.UserID
	}
	ended, err := s.store.DeactivateSession(ctx, token)
	if err != nil {
		return false, err
	}
	if ended {
		s.notifier.Notify(ctx, audit.Event{Kind: audit.KindLogout, UserID: userID})
	}
	return ended, nil
}

// ValidateSession resolves token to a live session. It returns nil, nil
// when the token is unknown, ended or expired.
func (s *Service) ValidateSession(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, nil
	}
	now := s.now()

	if sess, err := s.cache.Get(ctx, token); err == nil {
		if !sess.Expired(now) {
			return sess, nil
		}
		_ = s.cache.Invalidate(ctx, token)
	} else if !errors.Is(err, session.ErrNotFound) {
		slog.Warn("session cache lookup failed", "err", err)
	}

	row, err := s.store.GetActiveSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}
	if !now.Before(row.ExpiresAt) {
		if _, err := s.store.DeactivateSession(ctx, token); err != nil {
			slog.Warn("failed to deactivate expired session", "err", err)
		}
		return nil, nil
	}

	sess := &session.Session{
		Token:     row.Token,
		UserID:    row.UserID,
		Email:     row.Email,
		Role:      session.Role(row.Role),
		IssuedAt:  row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if err := s.cache.Put(ctx, sess); err != nil {
		slog.Warn("failed to cache session", "user_id", sess.UserID, "err", err)
	}
	return sess, nil
}
