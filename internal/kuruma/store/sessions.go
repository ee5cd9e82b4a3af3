package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRow is a persisted login session joined with its user.
type SessionRow struct {
	Token     string
	UserID    int64
	Email     string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CreateSession persists a newly issued session token.
func (s *Store) CreateSession(ctx context.Context, userID int64, token string, createdAt, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, session_token, created_at, expires_at, is_active)
		VALUES (?, ?, ?, ?, 1)
	`, userID, token, formatTime(createdAt), formatTime(expiresAt))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetActiveSession returns the active session for token. Expiry is not
// checked here; callers compare ExpiresAt with their own clock.
func (s *Store) GetActiveSession(ctx context.Context, token string) (*SessionRow, error) {
	var (
		row              SessionRow
		created, expires sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT s.session_token, s.user_id, u.email, u.role, s.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_token = ? AND s.is_active = 1 AND u.is_active = 1
	`, token).Scan(&row.Token, &row.UserID, &row.Email, &row.Role, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "session", Key: "token"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	row.CreatedAt = parseTime(created)
	row.ExpiresAt = parseTime(expires)
	return &row, nil
}

// DeactivateSession marks a session inactive and reports whether it was
// active before the call.
func (s *Store) DeactivateSession(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = 0 WHERE session_token = ? AND is_active = 1
	`, token)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// CountActiveSessions counts unexpired active sessions at now.
func (s *Store) CountActiveSessions(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE is_active = 1 AND expires_at > ?
	`, formatTime(now)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
