package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEntry represents an audit log entry
type AuditEntry struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	UserID       sql.NullInt64
	Action       string
	Target       sql.NullString
	PayloadJSON  sql.NullString
	Result       string
	ErrorMessage sql.NullString
}

// AuditPayload is a helper for structured audit payloads
type AuditPayload map[string]interface{}

// AuditRecord is one row to be written to the audit log. UserID 0 means
// the action had no authenticated actor.
type AuditRecord struct {
	TraceID string
	UserID  int64
	Action  string
	Target  string
	Result  string
	Payload AuditPayload
	Error   string
}

// WriteAudit logs an audit entry
func (s *Store) WriteAudit(ctx context.Context, rec AuditRecord) error {
	var payloadJSON sql.NullString
	if rec.Payload != nil {
		jsonBytes, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
		payloadJSON = sql.NullString{String: string(jsonBytes), Valid: true}
	}

	var userID sql.NullInt64
	if rec.UserID != 0 {
		userID = sql.NullInt64{Int64: rec.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, user_id, action, target, payload_json, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, formatTime(s.now()), rec.TraceID, userID, rec.Action, nullString(rec.Target), payloadJSON, rec.Result, nullString(rec.Error))

	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

const auditColumns = `id, ts, trace_id, user_id, action, target, payload_json, result, error_message`

// GetAuditLog retrieves recent audit entries
func (s *Store) GetAuditLog(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	return s.queryAudit(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
}

// GetAuditByTrace retrieves all audit entries for a trace ID
func (s *Store) GetAuditByTrace(ctx context.Context, traceID string) ([]*AuditEntry, error) {
	return s.queryAudit(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log
		WHERE trace_id = ?
		ORDER BY id ASC
	`, traceID)
}

func (s *Store) queryAudit(ctx context.Context, query string, args ...any) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		var ts sql.NullString
		err := rows.Scan(
			&entry.ID, &ts, &entry.TraceID, &entry.UserID,
			&entry.Action, &entry.Target, &entry.PayloadJSON,
			&entry.Result, &entry.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Timestamp = parseTime(ts)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}
