// Package app wires the Kuruma services together and runs the
// line-oriented console.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bdobrica/Kuruma/common/crypto"
	"github.com/bdobrica/Kuruma/internal/kuruma/audit"
	"github.com/bdobrica/Kuruma/internal/kuruma/auth"
	"github.com/bdobrica/Kuruma/internal/kuruma/commands"
	kurumaconfig "github.com/bdobrica/Kuruma/internal/kuruma/config"
	"github.com/bdobrica/Kuruma/internal/kuruma/nlp"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

// Config holds application configuration.
type Config struct {
	DatabasePath string
	// MasterKey is the 32-byte key sealing national IDs.
	MasterKey []byte

	// Seed inserts the sample fleet into an empty database and creates the
	// admin account when AdminPassword is set.
	Seed            bool
	AdminEmail      string
	AdminPassword   string
	AdminNationalID string

	// PasswordIterations overrides the PBKDF2 work factor; zero uses the
	// default.
	PasswordIterations int

	// RedisAddr selects the Redis session cache. When empty sessions are
	// cached in memory and swept every minute.
	RedisAddr     string
	RedisPassword string

	// AuditFile is appended with one line per audit event. Empty disables
	// the file; events are always stored in the database.
	AuditFile string

	// NLP configures the assistant used for unrecognised input. Without an
	// API key the assistant is disabled.
	NLP commands.ProviderDefaults
	// NLPProvider, when set, is used as-is instead of building one from NLP.
	NLPProvider nlp.Provider
	// NLPRateLimit is the number of assistant calls per user per minute.
	// The nlp.rate_limit config key takes precedence.
	NLPRateLimit int

	// RulesFile replaces the built-in classifier rules with a YAML rule
	// document in the same format.
	RulesFile string

	// HTTPAddr is the address of the optional health server.
	HTTPAddr string
}

// App is the running application.
type App struct {
	config       *Config
	store        *store.Store
	sessions     session.Store
	auth         *auth.Service
	engine       *commands.Engine
	auditFile    *audit.FileNotifier
	healthServer *HealthServer
}

// New opens the database and builds every service.
func New(ctx context.Context, config *Config) (*App, error) {
	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{config: config, store: st}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	config := a.config

	notifier := audit.Multi{audit.NewStoreNotifier(a.store)}
	if config.AuditFile != "" {
		f, err := audit.OpenFile(config.AuditFile)
		if err != nil {
			return fmt.Errorf("failed to open audit file: %w", err)
		}
		a.auditFile = f
		notifier = append(notifier, f)
		slog.Info("audit file ready", "path", config.AuditFile)
	}

	if config.RedisAddr != "" {
		rs, err := session.NewRedisStore(ctx, config.RedisAddr, config.RedisPassword)
		if err != nil {
			return fmt.Errorf("failed to connect session cache: %w", err)
		}
		a.sessions = rs
		slog.Info("session cache ready", "backend", "redis", "addr", config.RedisAddr)
	} else {
		ms := session.NewMemoryStore()
		if err := ms.StartSweeper(session.DefaultSweepSchedule); err != nil {
			return fmt.Errorf("failed to start session sweeper: %w", err)
		}
		a.sessions = ms
		slog.Info("session cache ready", "backend", "memory")
	}

	authSvc, err := auth.New(auth.Config{
		Store:     a.store,
		Cache:     a.sessions,
		MasterKey: config.MasterKey,
		Hasher:    crypto.PasswordHasher{Iterations: config.PasswordIterations},
		Notifier:  notifier,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}
	a.auth = authSvc

	if config.Seed {
		n, err := a.store.SeedFleet(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed fleet: %w", err)
		}
		if n > 0 {
			slog.Info("sample fleet seeded", "cars", n)
		}
		if config.AdminPassword != "" {
			if err := authSvc.EnsureAdmin(ctx, config.AdminEmail, config.AdminPassword, config.AdminNationalID); err != nil {
				return fmt.Errorf("failed to create admin account: %w", err)
			}
		} else {
			slog.Warn("no admin password configured; admin account not created")
		}
	}

	classifier, err := loadClassifier(config.RulesFile)
	if err != nil {
		return err
	}

	configStore := kurumaconfig.New(a.store)

	providers := commands.NewProviderResolver(config.NLP, configStore)
	if config.NLPProvider != nil {
		providers = commands.StaticProvider(config.NLPProvider)
		slog.Info("NLP: using pre-configured provider")
	} else if config.NLP.APIKey == "" {
		slog.Info("NLP: no API key configured; unrecognised input will not reach the assistant")
	}
	rateLimit := kurumaconfig.IntOr(ctx, configStore, kurumaconfig.KeyNLPRateLimit, config.NLPRateLimit)

	executor := commands.NewExecutor(commands.ExecutorConfig{
		Auth:     authSvc,
		Rentals:  a.store,
		Admin:    a.store,
		Notifier: notifier,
	})
	fallback := commands.NewFallback(commands.FallbackConfig{
		Providers: providers,
		Executor:  executor,
		Limiter:   nlp.NewRateLimiter(rateLimit, time.Minute),
		Notifier:  notifier,
		Timeout:   config.NLP.Timeout,
	})
	a.engine = commands.NewEngine(commands.EngineConfig{
		Sessions:   authSvc,
		Classifier: classifier,
		Executor:   executor,
		Fallback:   fallback,
		Notifier:   notifier,
	})

	if config.HTTPAddr != "" {
		a.healthServer = NewHealthServer(config.HTTPAddr, a.store)
	}
	return nil
}

func loadClassifier(path string) (*commands.Classifier, error) {
	if path == "" {
		return commands.NewClassifier(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	c, err := commands.LoadRules(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules file %s: %w", path, err)
	}
	slog.Info("classifier rules loaded", "path", path)
	return c, nil
}

// Engine returns the command engine.
func (a *App) Engine() *commands.Engine {
	return a.engine
}

// Run reads commands from in until EOF, "exit" or "quit", or until ctx is
// cancelled, writing replies to out. The session token lives only here.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if a.healthServer != nil {
		if err := a.healthServer.Start(ctx); err != nil {
			slog.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	c := newConsole(in, out)
	defer c.close()
	c.println("Welcome to Kuruma car rental. Type 'help' for available commands.")

	var (
		token string
		email string
	)
	for {
		if ctx.Err() != nil {
			break
		}
		prompt := "> "
		if email != "" {
			prompt = email + "> "
		}
		line, err := c.readLine(ctx, prompt)
		if errors.Is(err, io.EOF) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			continue
		case "exit", "quit":
			c.println("Goodbye!")
			a.endSession(ctx, token)
			return nil
		}

		res := a.engine.Handle(commands.WithPrompter(ctx, c), token, line, nil)
		if res.Session != nil {
			token, email = res.Session.Token, res.Session.Email
		}
		if res.ClearSession {
			token, email = "", ""
		}
		c.println(res.Message)
	}

	a.endSession(ctx, token)
	return nil
}

func (a *App) endSession(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if _, err := a.auth.Logout(context.WithoutCancel(ctx), token); err != nil {
		slog.Warn("failed to end session on exit", "err", err)
	}
}

// Close releases every resource. It is safe to call more than once.
func (a *App) Close() {
	if a.healthServer != nil {
		a.healthServer.Stop()
		a.healthServer = nil
	}
	switch s := a.sessions.(type) {
	case *session.MemoryStore:
		s.StopSweeper()
	case *session.RedisStore:
		if err := s.Close(); err != nil {
			slog.Warn("failed to close session cache", "err", err)
		}
	}
	a.sessions = nil
	if a.auditFile != nil {
		if err := a.auditFile.Close(); err != nil {
			slog.Warn("failed to close audit file", "err", err)
		}
		a.auditFile = nil
	}
	if a.store != nil {
		slog.Info("closing database")
		a.store.Close()
		a.store = nil
	}
}

// console is the line-oriented terminal. It doubles as the Prompter for
// interactive argument collection. Lines are read on a separate goroutine
// so a cancelled context interrupts a pending read.
type console struct {
	lines chan scanned
	done  chan struct{}
	out   io.Writer
}

type scanned struct {
	text string
	err  error
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{
		lines: make(chan scanned),
		done:  make(chan struct{}),
		out:   out,
	}
	go c.scan(in)
	return c
}

func (c *console) scan(in io.Reader) {
	defer close(c.lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		select {
		case c.lines <- scanned{text: sc.Text()}:
		case <-c.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		select {
		case c.lines <- scanned{err: err}:
		case <-c.done:
		}
	}
}

func (c *console) close() {
	close(c.done)
}

func (c *console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *console) readLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}

// Prompt implements commands.Prompter. Secret input is read like any other
// line; the console does not control terminal echo.
func (c *console) Prompt(ctx context.Context, label string, _ bool) (string, error) {
	line, err := c.readLine(ctx, label+": ")
	if err != nil {
		return "", fmt.Errorf("prompt %q: %w", label, err)
	}
	return line, nil
}
