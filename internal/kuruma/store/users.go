package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User roles as stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	PasswordSalt string
	// NationalID is the sealed (AES-GCM, base64) national identifier.
	NationalID      string
	Role            string
	CreatedAt       time.Time
	LastLogin       time.Time
	IsActive        bool
	FailedAttempts  int
	LockedUntil     time.Time
	TermsAcceptedAt time.Time
}

const userColumns = `id, email, password_hash, password_salt, national_id, role, created_at,
	last_login, is_active, failed_attempts, locked_until, terms_accepted_at`

// CreateUser inserts a new user. A duplicate email yields a ConflictError.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.CreatedAt = s.now()
	u.IsActive = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin user insert: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, u.Email).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists > 0 {
		return &ConflictError{Reason: "Email already exists"}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, password_salt, national_id, role, created_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`, u.Email, u.PasswordHash, u.PasswordSalt, u.NationalID, u.Role, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user insert: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up by email (exact match).
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "user", Key: email}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByID looks a user up by surrogate id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "user", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListUsers returns every account ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// RecordLoginFailure stores the new consecutive failure count and, when the
// lockout threshold was reached, the time until which logins are refused.
func (s *Store) RecordLoginFailure(ctx context.Context, userID int64, attempts int, lockedUntil time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET failed_attempts = ?, locked_until = ? WHERE id = ?
	`, attempts, nullTime(lockedUntil), userID)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

// RecordLoginSuccess clears the failure counter and lock, and stamps last_login.
func (s *Store) RecordLoginSuccess(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET failed_attempts = 0, locked_until = NULL, last_login = ? WHERE id = ?
	`, formatTime(at), userID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// AcceptTerms stamps the moment the user accepted the rental terms.
func (s *Store) AcceptTerms(ctx context.Context, userID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET terms_accepted_at = ? WHERE id = ?`, formatTime(at), userID)
	if err != nil {
		return fmt.Errorf("failed to accept terms: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Entity: "user", Key: userID}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (*User, error) {
	var (
		u                                    User
		created, lastLogin, locked, termsAcc sql.NullString
		active                               int
	)
	err := r.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PasswordSalt, &u.NationalID, &u.Role,
		&created, &lastLogin, &active, &u.FailedAttempts, &locked, &termsAcc)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(created)
	u.LastLogin = parseTime(lastLogin)
	u.LockedUntil = parseTime(locked)
	u.TermsAcceptedAt = parseTime(termsAcc)
	u.IsActive = active != 0
	return &u, nil
}
