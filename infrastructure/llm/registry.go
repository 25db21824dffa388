package llm

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-verso/internal/ports"
)

// Registry owns every judge provider the evaluation engine can reach.
// It maps "provider/model" identifiers to cached ports.JudgeClient
// instances, constructing each client lazily from environment
// credentials the first time its identifier is requested. Registry
// implements ports.JudgeResolver, so the engine routes model
// identifiers without knowing how providers are built.
type Registry struct {
	// providers holds the configuration for every routable provider,
	// keyed by provider name.
	providers map[string]ProviderConfig
	// clients caches constructed clients by "provider/model" key.
	// A cached client carries its own middleware chain, so two model
	// identifiers never share rate limiters or circuit breakers.
	clients map[string]ports.JudgeClient
	// defaultProvider answers Resolve("") and GetDefaultClient.
	defaultProvider string
	// defaultMiddleware is layered under each provider's own
	// middleware when a client is constructed.
	defaultMiddleware []Middleware
	// defaultTimeout is the per-request timeout handed to every
	// constructed client.
	defaultTimeout time.Duration

	mu sync.RWMutex
}

var _ ports.JudgeResolver = (*Registry)(nil)

// ProviderConfig describes one judge provider: how to build its
// clients and which models it may serve.
type ProviderConfig struct {
	// Type selects the client factory (openai, anthropic, google).
	Type string
	// EnvVar names the environment variable holding the API key.
	EnvVar string
	// DefaultModel is used when an identifier names only the provider.
	DefaultModel string
	// SupportedModels restricts which models the provider accepts.
	// Empty means any model is allowed.
	SupportedModels []string
	// BaseURL overrides the provider's default API endpoint.
	BaseURL string
	// ContextWindow overrides the token budget assumed for the
	// provider's models. Zero adopts the client default.
	ContextWindow int
	// Middleware is applied to this provider's clients after the
	// registry-wide defaults.
	Middleware []Middleware
}

// RegistryConfig configures a Registry: the routable providers plus
// the defaults shared by every client the registry constructs.
type RegistryConfig struct {
	// Providers lists the routable providers by name.
	Providers map[string]ProviderConfig
	// DefaultProvider serves requests that do not name a provider.
	DefaultProvider string
	// DefaultTimeout bounds each judge request across all providers.
	DefaultTimeout time.Duration
	// DefaultMiddleware wraps every constructed client, innermost
	// first, before any provider-specific middleware.
	DefaultMiddleware []Middleware
}

// DefaultProviders covers the three hosted judge services with their
// conventional credential variables and the models known to return
// usable structured verdicts. Callers can start from this map and
// override entries as needed.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: "gpt-4.1",
		SupportedModels: []string{
			"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano",
			"gpt-4o", "gpt-4o-mini",
			"gpt-4", "gpt-4-turbo", "gpt-3.5-turbo",
			"o1", "o1-mini", "o3", "o3-mini", "o4-mini",
		},
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: "claude-4-sonnet",
		SupportedModels: []string{
			"claude-4.1-opus", "claude-4-opus", "claude-4-sonnet",
			"claude-3.7-sonnet", "claude-3.5-sonnet", "claude-3.5-haiku",
			"claude-3-opus", "claude-3-sonnet", "claude-3-haiku",
		},
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: "gemini-2.5-flash",
		SupportedModels: []string{
			"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite",
			"gemini-2.0-flash", "gemini-2.0-flash-lite",
			"gemini-1.5-pro", "gemini-1.5-flash",
		},
	},
}

// NewRegistry validates the configuration and returns a registry with
// an empty client cache. Clients are constructed on first resolution,
// so missing credentials surface when a provider is actually used,
// not at construction time.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}
	if _, ok := config.Providers[config.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	return &Registry{
		providers:         config.Providers,
		clients:           make(map[string]ports.JudgeClient),
		defaultProvider:   config.DefaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
	}, nil
}

// Resolve returns the client serving the given "provider/model"
// identifier. An empty identifier resolves to the default provider's
// default model. This is the ports.JudgeResolver entry point used by
// the evaluation engine.
func (r *Registry) Resolve(model string) (ports.JudgeClient, error) {
	if model == "" {
		return r.GetDefaultClient()
	}
	return r.GetClient(model)
}

// GetDefaultClient returns the client for the default provider's
// default model.
func (r *Registry) GetDefaultClient() (ports.JudgeClient, error) {
	cfg, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, fmt.Errorf("default provider %q not found in configuration", r.defaultProvider)
	}
	return r.GetClient(r.defaultProvider + "/" + cfg.DefaultModel)
}

// GetClient returns the client for a "provider/model" identifier,
// constructing and caching it on first use. A bare provider name
// adopts that provider's default model. The empty identifier is
// rejected; use GetDefaultClient for the default provider.
func (r *Registry) GetClient(spec string) (ports.JudgeClient, error) {
	if spec == "" {
		return nil, fmt.Errorf("provider specification cannot be empty; use GetDefaultClient for the default provider")
	}

	provider, model := r.splitSpec(spec)
	key := cacheKey(provider, model)

	r.mu.RLock()
	client, ok := r.clients[key]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have constructed the client while we
	// waited for the write lock.
	if client, ok := r.clients[key]; ok {
		return client, nil
	}

	client, err := r.createClient(provider, model)
	if err != nil {
		return nil, err
	}

	r.clients[key] = client
	return client, nil
}

// RegisterClient installs a client under the given name with explicit
// configuration, bypassing environment credential lookup. The name
// may be a bare provider or a "provider/model" identifier; the
// provider must exist in the registry's configuration so its client
// factory type is known. Registry defaults are merged into the
// supplied configuration.
func (r *Registry) RegisterClient(name string, config ClientConfig) error {
	if name == "" {
		return fmt.Errorf("client name cannot be empty")
	}

	provider, model := r.splitSpec(name)
	cfg, ok := r.providers[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}

	if config.Timeout == 0 {
		config.Timeout = r.defaultTimeout
	}
	config.Middleware = append(append([]Middleware{}, r.defaultMiddleware...), config.Middleware...)

	client, err := NewClient(cfg.Type, config)
	if err != nil {
		return fmt.Errorf("failed to create client %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[cacheKey(provider, model)] = client
	return nil
}

// InitializeProviders eagerly constructs a default-model client for
// every provider whose credential variable is set. Providers without
// credentials are skipped unless the default provider is among them,
// which is an error since nothing could serve unrouted requests.
func (r *Registry) InitializeProviders() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, cfg := range r.providers {
		apiKey := os.Getenv(cfg.EnvVar)
		if apiKey == "" {
			if name == r.defaultProvider {
				return fmt.Errorf("%s environment variable not set for default provider %q", cfg.EnvVar, name)
			}
			continue
		}

		client, err := NewClient(cfg.Type, r.clientConfig(cfg, apiKey, cfg.DefaultModel))
		if err != nil {
			return fmt.Errorf("failed to create %s client: %w", name, err)
		}
		r.clients[cacheKey(name, cfg.DefaultModel)] = client
	}

	return nil
}

// GetRegisteredProviders lists the providers that currently have at
// least one constructed client.
func (r *Registry) GetRegisteredProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range r.clients {
		provider, _, _ := strings.Cut(key, "/")
		if provider != "" {
			seen[provider] = struct{}{}
		}
	}

	providers := make([]string, 0, len(seen))
	for provider := range seen {
		providers = append(providers, provider)
	}
	return providers
}

// createClient builds a client for the provider and model, reading
// the API key from the provider's credential variable. Callers hold
// the registry write lock.
func (r *Registry) createClient(provider, model string) (ports.JudgeClient, error) {
	cfg, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	if len(cfg.SupportedModels) > 0 && !slices.Contains(cfg.SupportedModels, model) {
		return nil, fmt.Errorf("model %q is not supported by provider %q (supported: %s)",
			model, provider, strings.Join(cfg.SupportedModels, ", "))
	}

	apiKey := os.Getenv(cfg.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", cfg.EnvVar, provider)
	}

	return NewClient(cfg.Type, r.clientConfig(cfg, apiKey, model))
}

// clientConfig assembles a client configuration from a provider entry,
// layering registry-wide middleware under the provider's own.
func (r *Registry) clientConfig(cfg ProviderConfig, apiKey, model string) ClientConfig {
	mw := make([]Middleware, 0, len(r.defaultMiddleware)+len(cfg.Middleware))
	mw = append(mw, r.defaultMiddleware...)
	mw = append(mw, cfg.Middleware...)

	return ClientConfig{
		APIKey:        apiKey,
		Model:         model,
		BaseURL:       cfg.BaseURL,
		Timeout:       r.defaultTimeout,
		ContextWindow: cfg.ContextWindow,
		Middleware:    mw,
	}
}

// splitSpec separates a "provider/model" identifier. A bare provider
// name yields that provider's default model when the provider is
// known, and an empty model otherwise.
func (r *Registry) splitSpec(spec string) (provider, model string) {
	provider, model, ok := strings.Cut(spec, "/")
	if !ok {
		if cfg, known := r.providers[provider]; known {
			model = cfg.DefaultModel
		}
	}
	return provider, model
}

// cacheKey normalizes a provider and model pair into the client cache
// key, so "provider" and "provider/<default>" resolve consistently.
func cacheKey(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + "/" + model
}
