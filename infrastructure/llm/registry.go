package llm

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-covenant/internal/ports"
)

// Registry resolves "provider/model" specs from the model pool into
// clients. Clients are created lazily and cached per spec, so every model
// in the pool gets its own middleware chain and circuit breaker.
//
//	reg, _ := llm.NewRegistry(llm.RegistryConfig{
//	    DefaultProvider: "groq",
//	    Providers:       llm.DefaultProviders,
//	})
//	client, err := reg.GetClient("groq/llama-3.3-70b-versatile")
type Registry struct {
	mu                sync.RWMutex
	providers         map[string]ProviderConfig
	clients           map[string]ports.LLMClient
	defaultProvider   string
	defaultMiddleware []Middleware
	defaultTimeout    time.Duration
	estimator         TokenEstimator
	getenv            func(string) string
}

// ProviderConfig describes one provider entry.
type ProviderConfig struct {
	// Type selects the registered ProviderFactory.
	Type string
	// EnvVar names the environment variable holding the API key.
	EnvVar       string
	DefaultModel string
	// SupportedModels, when non-empty, restricts the models accepted.
	SupportedModels []string
	BaseURL         string
	// Middleware is applied inside the registry defaults.
	Middleware []Middleware
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Providers         map[string]ProviderConfig
	DefaultProvider   string
	DefaultTimeout    time.Duration
	DefaultMiddleware []Middleware
	TokenEstimator    TokenEstimator
}

// GroqModels is the interchangeable Groq model pool, in rotation order.
var GroqModels = []string{
	"moonshotai/kimi-k2-instruct",
	"moonshotai/kimi-k2-instruct-0905",
	"llama-3.3-70b-versatile",
	"openai/gpt-oss-20b",
	"openai/gpt-oss-120b",
	"meta-llama/llama-4-scout-17b-16e-instruct",
	"deepseek-r1-distill-llama-70b",
	"qwen/qwen3-32b",
	"gemma2-9b-it",
	"llama-3.1-8b-instant",
	"meta-llama/llama-4-maverick-17b-128e-instruct",
}

// DefaultProviders lists the providers known out of the box.
var DefaultProviders = map[string]ProviderConfig{
	"groq": {
		Type:         "groq",
		EnvVar:       "GROQ_API_KEY",
		DefaultModel: "llama-3.3-70b-versatile",
		BaseURL:      GroqBaseURL,
	},
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: "gpt-4o-mini",
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
	},
}

// NewRegistry validates config and returns an empty registry.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}
	if _, ok := config.Providers[config.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	return &Registry{
		providers:         config.Providers,
		clients:           make(map[string]ports.LLMClient),
		defaultProvider:   config.DefaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
		estimator:         config.TokenEstimator,
		getenv:            os.Getenv,
	}, nil
}

// GetDefaultClient returns the client for the default provider's default
// model.
func (r *Registry) GetDefaultClient() (ports.LLMClient, error) {
	return r.GetClient(r.defaultProvider)
}

// GetClient returns the client for spec, which is either "provider" (the
// provider's default model) or "provider/model". Model names may contain
// further slashes.
func (r *Registry) GetClient(spec string) (ports.LLMClient, error) {
	if spec == "" {
		return nil, fmt.Errorf("provider specification cannot be empty; use GetDefaultClient() for default provider")
	}

	provider, model := r.ParseSpec(spec)
	key := buildKey(provider, model)

	r.mu.RLock()
	client, ok := r.clients[key]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
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

// RegisterCore installs a pre-built CoreLLM under spec, wrapped in the
// registry's default middleware. It replaces any existing client.
func (r *Registry) RegisterCore(spec string, core CoreLLM) error {
	provider, model, found := strings.Cut(spec, "/")
	if !found || provider == "" || model == "" {
		return fmt.Errorf("invalid model spec %q: want provider/model", spec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	middleware := append([]Middleware{}, r.defaultMiddleware...)
	if pc, ok := r.providers[provider]; ok {
		middleware = append(middleware, pc.Middleware...)
	}
	r.clients[buildKey(provider, model)] = newClientFromCore(provider, core, ClientConfig{
		Middleware:     middleware,
		TokenEstimator: r.estimator,
	})
	return nil
}

// ParseSpec splits spec into provider and model. A bare provider resolves
// to its default model.
func (r *Registry) ParseSpec(spec string) (provider, model string) {
	provider, model, found := strings.Cut(spec, "/")
	if !found {
		if pc, ok := r.providers[provider]; ok {
			model = pc.DefaultModel
		}
	}
	return provider, model
}

// HasProvider reports whether provider is configured.
func (r *Registry) HasProvider(provider string) bool {
	_, ok := r.providers[provider]
	return ok
}

// Providers returns the configured provider names, sorted.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildKey(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + "/" + model
}

func (r *Registry) createClient(provider, model string) (ports.LLMClient, error) {
	pc, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	if len(pc.SupportedModels) > 0 && !slices.Contains(pc.SupportedModels, model) {
		return nil, fmt.Errorf("model %q is not supported by provider %q", model, provider)
	}

	apiKey := r.getenv(pc.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", pc.EnvVar, provider)
	}

	middleware := append([]Middleware{}, r.defaultMiddleware...)
	middleware = append(middleware, pc.Middleware...)

	client, err := NewClient(pc.Type, ClientConfig{
		APIKey:         apiKey,
		Model:          model,
		BaseURL:        pc.BaseURL,
		Timeout:        r.defaultTimeout,
		TokenEstimator: r.estimator,
		Middleware:     middleware,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
