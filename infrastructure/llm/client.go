// Package llm adapts chat-completion providers to ports.LLMClient.
//
// Every provider is reduced to a CoreLLM and then wrapped by a chain of
// Middleware (timeout, rate limiting, circuit breaking, caching, metrics,
// tracing). The Registry resolves "provider/model" specs from the model
// pool into ready-to-use clients so callers can rotate across models
// without knowing which vendor serves them.
//
// Basic usage:
//
//	client, err := llm.NewClient("groq", llm.ClientConfig{
//	    APIKey: os.Getenv("GROQ_API_KEY"),
//	    Model:  "llama-3.3-70b-versatile",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(2, 4),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	    },
//	})
//	text, err := client.Complete(ctx, prompt, map[string]any{"temperature": 0.0})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-covenant/internal/ports"
)

// CoreLLM is the minimal surface a provider implements. Middleware wraps
// CoreLLM values, so anything that satisfies it can be decorated.
type CoreLLM interface {
	// DoRequest sends prompt and returns the response text with input and
	// output token counts.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	GetModel() string
	SetModel(model string)
}

// TokenEstimator approximates token counts before a request is made.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// ClientConfig holds the settings used to build one provider client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is the default model for requests that carry no "model" option.
	Model string

	// BaseURL overrides the provider endpoint. OpenAI-compatible hosts such
	// as Groq are reached this way.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero leaves the provider
	// default in place; per-call deadlines travel on the context.
	Timeout time.Duration

	TokenEstimator TokenEstimator

	// Middleware is applied so that the first entry is the outermost.
	Middleware []Middleware
}

// Middleware decorates a CoreLLM with a cross-cutting concern.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a middleware-wrapped CoreLLM.
type Client struct {
	provider  string
	core      CoreLLM
	estimator TokenEstimator
}

// NewClient builds a client for the named provider type.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := lookupProviderFactory(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", providerType, err)
	}

	return newClientFromCore(providerType, core, config), nil
}

// NewClientFromCore wraps an existing CoreLLM. It is how tests and custom
// providers obtain a Client without going through the factory table.
func NewClientFromCore(provider string, core CoreLLM, middleware ...Middleware) *Client {
	return newClientFromCore(provider, core, ClientConfig{Middleware: middleware})
}

func newClientFromCore(provider string, core CoreLLM, config ClientConfig) *Client {
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewCharacterBasedTokenEstimator(DefaultCharsPerToken)
	}

	return &Client{provider: provider, core: core, estimator: estimator}
}

// Complete sends a prompt and returns only the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and also reports token usage.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model configured on the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// Provider returns the provider type the client was built for.
func (c *Client) Provider() string { return c.provider }

var _ ports.LLMClient = (*Client)(nil)
