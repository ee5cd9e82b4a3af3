package commands_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bdobrica/Kuruma/common/crypto"
	"github.com/bdobrica/Kuruma/internal/kuruma/audit"
	"github.com/bdobrica/Kuruma/internal/kuruma/auth"
	"github.com/bdobrica/Kuruma/internal/kuruma/commands"
	"github.com/bdobrica/Kuruma/internal/kuruma/nlp"
	"github.com/bdobrica/Kuruma/internal/kuruma/session"
	"github.com/bdobrica/Kuruma/internal/kuruma/store"
)

const (
	userEmail     = "a@b.com"
	userPassword  = "Str0ng!Pass"
	adminEmail    = "admin@kuruma.local"
	adminPassword = "Admin@2025"
)

// fixture is a seeded database with one customer and one admin.
type fixture struct {
	store    *store.Store
	auth     *auth.Service
	admin    *spyAdmin
	exec     *commands.Executor
	log      *bytes.Buffer
	provider *stubProvider
	fallback *commands.Fallback
	engine   *commands.Engine

	mu  sync.Mutex
	now time.Time
}

func (fx *fixture) clock() time.Time {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return fx.now
}

func (fx *fixture) setNow(t time.Time) {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	fx.now = t
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "kuruma-commands-*.db")
	if err != nil {
		t.Fatalf("create temp db: %v", err)
	}
	f.Close()
	st, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fx := &fixture{
		store:    st,
		log:      &bytes.Buffer{},
		now:      time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		provider: &stubProvider{},
	}
	st.SetClock(fx.clock)
	cache := session.NewMemoryStore()
	cache.SetClock(fx.clock)
	notifier := audit.Multi{audit.NewFileNotifier(fx.log), audit.NewStoreNotifier(st)}

	fx.auth, err = auth.New(auth.Config{
		Store:     st,
		Cache:     cache,
		MasterKey: bytes.Repeat([]byte{0x42}, crypto.KeySize),
		Hasher:    crypto.PasswordHasher{Iterations: 1000},
		Notifier:  notifier,
		Now:       fx.clock,
	})
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}

	ctx := context.Background()
	if _, err := st.SeedFleet(ctx); err != nil {
		t.Fatalf("SeedFleet: %v", err)
	}
	if err := fx.auth.EnsureAdmin(ctx, adminEmail, adminPassword, "ADMIN0"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}

	fx.admin = &spyAdmin{Store: st}
	fx.exec = commands.NewExecutor(commands.ExecutorConfig{
		Auth:     fx.auth,
		Rentals:  st,
		Admin:    fx.admin,
		Notifier: notifier,
		Now:      fx.clock,
	})
	fx.fallback = commands.NewFallback(commands.FallbackConfig{
		Providers: commands.StaticProvider(fx.provider),
		Executor:  fx.exec,
		Limiter:   nlp.NewRateLimiter(3, time.Minute),
		Notifier:  notifier,
		Timeout:   time.Second,
		Now:       fx.clock,
	})
	fx.engine = commands.NewEngine(commands.EngineConfig{
		Sessions:   fx.auth,
		Classifier: commands.NewClassifier(),
		Executor:   fx.exec,
		Fallback:   fx.fallback,
		Notifier:   notifier,
		Now:        fx.clock,
	})
	return fx
}

// register creates and logs in a customer.
func (fx *fixture) customer(t *testing.T, email string) *session.Session {
	t.Helper()
	ctx := context.Background()
	res := fx.exec.Execute(ctx, commands.CmdRegister, nil, commands.Args{
		"email": email, "password": userPassword, "national_id": "N1",
	})
	if !res.Success {
		t.Fatalf("register %s: %s", email, res.Message)
	}
	return fx.login(t, email, userPassword)
}

func (fx *fixture) login(t *testing.T, email, password string) *session.Session {
	t.Helper()
	res := fx.exec.Execute(context.Background(), commands.CmdLogin, nil, commands.Args{
		"email": email, "password": password,
	})
	if !res.Success || res.Session == nil {
		t.Fatalf("login %s: %s", email, res.Message)
	}
	return res.Session
}

// spyAdmin counts admin collaborator calls.
type spyAdmin struct {
	*store.Store

	mu    sync.Mutex
	calls int
}

func (s *spyAdmin) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *spyAdmin) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *spyAdmin) ListUsers(ctx context.Context) ([]*store.User, error) {
	s.hit()
	return s.Store.ListUsers(ctx)
}

func (s *spyAdmin) ListAllBookings(ctx context.Context) ([]*store.Booking, error) {
	s.hit()
	return s.Store.ListAllBookings(ctx)
}

func (s *spyAdmin) GetRevenueStats(ctx context.Context, from, to string) (*store.RevenueStats, error) {
	s.hit()
	return s.Store.GetRevenueStats(ctx, from, to)
}

// stubProvider returns a canned completion and records requests.
type stubProvider struct {
	mu   sync.Mutex
	comp *nlp.Completion
	err  error
	reqs []nlp.CompletionRequest
}

func (p *stubProvider) set(comp *nlp.Completion, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.comp, p.err = comp, err
}

func (p *stubProvider) requests() []nlp.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]nlp.CompletionRequest(nil), p.reqs...)
}

func (p *stubProvider) Complete(ctx context.Context, req nlp.CompletionRequest) (*nlp.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return nil, p.err
	}
	if p.comp == nil {
		return nil, errors.New("stub: no completion configured")
	}
	return p.comp, nil
}

// scriptedPrompter answers prompts in order and records their labels.
type scriptedPrompter struct {
	answers []string
	labels  []string
}

func (p *scriptedPrompter) Prompt(_ context.Context, label string, _ bool) (string, error) {
	p.labels = append(p.labels, label)
	if len(p.answers) == 0 {
		return "", errors.New("no more answers")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}
