package commands

// Provider resolution for the fallback.
//
// The API key comes from the environment and never changes at runtime. Model
// and endpoint are read from the config store on every call so an operator
// can retarget the assistant without a restart. The provider is rebuilt only
// when the (apiKey, model, endpoint) snapshot differs from the cached one.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bdobrica/Kuruma/internal/kuruma/config"
	"github.com/bdobrica/Kuruma/internal/kuruma/nlp"
)

type nlpCache struct {
	provider nlp.Provider
	apiKey   string
	model    string
	endpoint string
}

// ProviderDefaults are the environment-supplied provider settings. Model
// and Endpoint are overridden by the config store when set there.
type ProviderDefaults struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// ProviderResolver returns the assistant provider for the current request.
type ProviderResolver struct {
	defaults ProviderDefaults
	config   config.Store
	static   nlp.Provider

	mu    sync.RWMutex
	cache nlpCache
}

// NewProviderResolver creates a resolver that builds OpenAI-compatible
// providers. cs may be nil.
func NewProviderResolver(d ProviderDefaults, cs config.Store) *ProviderResolver {
	return &ProviderResolver{defaults: d, config: cs}
}

// StaticProvider returns a resolver that always yields p.
func StaticProvider(p nlp.Provider) *ProviderResolver {
	return &ProviderResolver{static: p}
}

// Resolve returns nil when no API key is configured; the fallback is then
// unavailable.
func (r *ProviderResolver) Resolve(ctx context.Context) nlp.Provider {
	if r == nil {
		return nil
	}
	if r.static != nil {
		return r.static
	}
	apiKey := r.defaults.APIKey
	if apiKey == "" {
		return nil
	}

	model := config.StringOr(ctx, r.config, config.KeyNLPModel, r.defaults.Model)
	endpoint := config.StringOr(ctx, r.config, config.KeyNLPEndpoint, r.defaults.Endpoint)

	r.mu.RLock()
	cached := r.cache
	r.mu.RUnlock()
	if cached.provider != nil &&
		cached.apiKey == apiKey &&
		cached.model == model &&
		cached.endpoint == endpoint {
		return cached.provider
	}

	built := nlp.New(nlp.Config{
		APIKey:  apiKey,
		BaseURL: endpoint,
		Model:   model,
		Timeout: r.defaults.Timeout,
	})

	logModel := model
	if logModel == "" {
		logModel = "gpt-4o-mini (default)"
	}
	logEndpoint := endpoint
	if logEndpoint == "" {
		logEndpoint = "https://api.openai.com/v1 (default)"
	}
	slog.Info("nlp: provider (re)built", "model", logModel, "endpoint", logEndpoint)

	r.mu.Lock()
	r.cache = nlpCache{provider: built, apiKey: apiKey, model: model, endpoint: endpoint}
	r.mu.Unlock()
	return built
}
