package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/bdobrica/Kuruma/internal/kuruma/config"
	appstore "github.com/bdobrica/Kuruma/internal/kuruma/store"
)

func newTestStore(t *testing.T) config.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "kuruma-config-test-*.db")
	if err != nil {
		t.Fatalf("create temp db file: %v", err)
	}
	f.Close()

	s, err := appstore.New(f.Name())
	if err != nil {
		t.Fatalf("appstore.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return config.New(s)
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), config.KeyNLPModel)
	if !errors.Is(err, config.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestSetGetOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, config.KeyNLPModel, "gpt-4o-mini"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, config.KeyNLPModel, "gpt-4o"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err := store.Get(ctx, config.KeyNLPModel)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "gpt-4o" {
		t.Errorf("got %q, want %q", got, "gpt-4o")
	}
}

func TestSetValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{config.KeyNLPEndpoint, "https://api.example.com/v1", false},
		{config.KeyNLPEndpoint, "ftp://nope", true},
		{config.KeyNLPRateLimit, "30", false},
		{config.KeyNLPRateLimit, "-1", true},
		{config.KeyNLPModel, "  ", true},
		{"nlp.api_key", "sk-123", true},
	}
	for _, tt := range tests {
		err := store.Set(ctx, tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q, %q): err=%v, wantErr=%v", tt.key, tt.value, err, tt.wantErr)
		}
	}

	if err := store.Set(ctx, "nlp.api_key", "x"); !errors.Is(err, config.ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Delete(ctx, config.KeyNLPModel); err != nil {
		t.Fatalf("Delete absent key: %v", err)
	}
	_ = store.Set(ctx, config.KeyNLPModel, "m")
	_ = store.Set(ctx, config.KeyNLPRateLimit, "5")

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[config.KeyNLPModel] != "m" {
		t.Errorf("List: got %v", all)
	}

	if err := store.Delete(ctx, config.KeyNLPModel); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, config.KeyNLPModel); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStringOrIntOr(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if got := config.StringOr(ctx, store, config.KeyNLPModel, "def"); got != "def" {
		t.Errorf("StringOr unset: got %q", got)
	}
	if got := config.StringOr(ctx, nil, config.KeyNLPModel, "def"); got != "def" {
		t.Errorf("StringOr nil store: got %q", got)
	}
	_ = store.Set(ctx, config.KeyNLPRateLimit, "42")
	if got := config.IntOr(ctx, store, config.KeyNLPRateLimit, 20); got != 42 {
		t.Errorf("IntOr: got %d, want 42", got)
	}
}
