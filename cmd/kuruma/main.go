// Kuruma is the car rental console.
//
// Configuration is read from environment variables, optionally loaded from a
// .env file in the working directory.
//
// Required:
//
//	KURUMA_MASTER_KEY      - 64 hex chars sealing national IDs (openssl rand -hex 32)
//
// Optional:
//
//	KURUMA_DATABASE_PATH   - SQLite database (default: ./kuruma.db)
//	KURUMA_SEED            - seed sample fleet and admin account (default: true)
//	KURUMA_ADMIN_EMAIL     - seeded admin email (default: admin@kuruma.local)
//	KURUMA_ADMIN_PASSWORD  - seeded admin password; no admin is created when unset
//	KURUMA_ADMIN_NATIONAL_ID
//	KURUMA_NLP_API_KEY     - enables the assistant for unrecognised input
//	KURUMA_NLP_MODEL       - chat model (default: gpt-4o-mini)
//	KURUMA_NLP_ENDPOINT    - OpenAI-compatible base URL
//	KURUMA_NLP_TIMEOUT     - assistant call timeout (default: 15s)
//	KURUMA_NLP_RATE_LIMIT  - assistant calls per user per minute (default: 20)
//	KURUMA_REDIS_ADDR      - Redis session cache; in-memory when unset
//	KURUMA_REDIS_PASSWORD
//	KURUMA_AUDIT_FILE      - audit trail file (default: audit.log)
//	KURUMA_HTTP_ADDR       - health server address; disabled when unset
//	KURUMA_RULES_FILE      - YAML classifier rules replacing the built-in ones
//	LOG_LEVEL              - "debug", "info", "warn", "error" (default: "warn")
//	LOG_FORMAT             - "text" or "json" (default: "text")
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bdobrica/Kuruma/common/crypto"
	"github.com/bdobrica/Kuruma/common/environment"
	"github.com/bdobrica/Kuruma/common/version"
	"github.com/bdobrica/Kuruma/internal/kuruma/app"
	"github.com/bdobrica/Kuruma/internal/kuruma/commands"
	"github.com/bdobrica/Kuruma/internal/kuruma/nlp"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: failed to load .env: %v\n", err)
		os.Exit(1)
	}
	setupLogging()

	fmt.Println(version.Banner())
	fmt.Println()

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kuruma, err := app.New(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Kuruma: %v\n", err)
		os.Exit(1)
	}
	defer kuruma.Close()

	if err := kuruma.Run(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Kuruma: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*app.Config, error) {
	rawKey, err := environment.RequiredString("KURUMA_MASTER_KEY")
	if err != nil {
		return nil, fmt.Errorf("%w\nGenerate a key with: openssl rand -hex 32", err)
	}
	masterKey, err := crypto.ParseMasterKey(rawKey)
	if err != nil {
		return nil, err
	}

	return &app.Config{
		DatabasePath:    environment.StringOr("KURUMA_DATABASE_PATH", "./kuruma.db"),
		MasterKey:       masterKey,
		Seed:            environment.BoolOr("KURUMA_SEED", true),
		AdminEmail:      environment.StringOr("KURUMA_ADMIN_EMAIL", "admin@kuruma.local"),
		AdminPassword:   os.Getenv("KURUMA_ADMIN_PASSWORD"),
		AdminNationalID: environment.StringOr("KURUMA_ADMIN_NATIONAL_ID", "ADMIN"),
		RedisAddr:       os.Getenv("KURUMA_REDIS_ADDR"),
		RedisPassword:   os.Getenv("KURUMA_REDIS_PASSWORD"),
		AuditFile:       environment.StringOr("KURUMA_AUDIT_FILE", "audit.log"),
		HTTPAddr:        os.Getenv("KURUMA_HTTP_ADDR"),
		RulesFile:       os.Getenv("KURUMA_RULES_FILE"),
		NLP: commands.ProviderDefaults{
			APIKey:   os.Getenv("KURUMA_NLP_API_KEY"),
			Model:    os.Getenv("KURUMA_NLP_MODEL"),
			Endpoint: os.Getenv("KURUMA_NLP_ENDPOINT"),
			Timeout:  environment.DurationOr("KURUMA_NLP_TIMEOUT", 15*time.Second),
		},
		NLPRateLimit: environment.IntOr("KURUMA_NLP_RATE_LIMIT", nlp.DefaultRateLimit),
	}, nil
}

func setupLogging() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(environment.StringOr("LOG_LEVEL", "warn"))); err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
