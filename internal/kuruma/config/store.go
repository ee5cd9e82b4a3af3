// Package config holds operator-tunable runtime knobs for Kuruma in the
// config table of the application database. Only non-secret values live
// here; API keys stay in the environment.
package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

// Known keys.
const (
	KeyNLPModel     = "nlp.model"
	KeyNLPEndpoint  = "nlp.endpoint"
	KeyNLPRateLimit = "nlp.rate_limit"
)

// ErrNotFound is returned by Get when the requested key does not exist.
var ErrNotFound = errors.New("config: key not found")

// ErrUnknownKey is returned by Set for keys outside the known set.
var ErrUnknownKey = errors.New("config: unknown key")

var knownKeys = map[string]func(string) error{
	KeyNLPModel:     nonEmpty,
	KeyNLPEndpoint:  httpURL,
	KeyNLPRateLimit: positiveInt,
}

// Store is the read/write interface for the runtime configuration table.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set validates and upserts key.
	Set(ctx context.Context, key string, value string) error

	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every key/value pair (never nil).
	List(ctx context.Context) (map[string]string, error)
}

type sqliteStore struct {
	db *store.Store
}

// New creates a Store backed by the application database. store.New has
// already applied the migration that creates the config table.
func New(db *store.Store) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT value FROM config WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("config: get %q: %w", key, err)
	}
	return value, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	check, ok := knownKeys[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := check(value); err != nil {
		return fmt.Errorf("config: invalid value for %q: %w", key, err)
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("config: set %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("config: delete %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) List(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.DB().QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("config: list: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("config: list scan: %w", err)
		}
		result[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("config: list rows: %w", err)
	}
	return result, nil
}

// StringOr returns the stored value for key, or def when it is unset or
// the lookup fails.
func StringOr(ctx context.Context, s Store, key, def string) string {
	if s == nil {
		return def
	}
	v, err := s.Get(ctx, key)
	if err != nil || v == "" {
		return def
	}
	return v
}

// IntOr is StringOr for integer knobs.
func IntOr(ctx context.Context, s Store, key string, def int) int {
	v := StringOr(ctx, s, key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func nonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func httpURL(v string) error {
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func positiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return errors.New("must be a positive integer")
	}
	return nil
}
