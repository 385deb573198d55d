// Package llm provides a unified interface for interacting with LLM providers
// with built-in support for grounded structured output, rate limiting,
// circuit breaking, metrics, and tracing.
//
// The package abstracts multiple providers (Google, OpenAI, Anthropic) behind
// a common interface while adding production-ready cross-cutting concerns
// through a middleware pattern. Only the Google provider can ground answers
// with live web search; the others accept the same requests and report no
// citations.
//
// Basic usage:
//
//	client, err := llm.NewClient("google", llm.ClientConfig{
//	    APIKey: apiKey,
//	    Model:  "gemini-3-flash-preview",
//	})
//	resp, err := client.Generate(ctx, ports.GenerateRequest{
//	    Prompt:    "Is the Eiffel Tower in Rome?",
//	    WebSearch: true,
//	})
//
// Advanced usage with middleware:
//
//	client, err := llm.NewClient("google", llm.ClientConfig{
//	    APIKey: apiKey,
//	    Model:  "gemini-3-flash-preview",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("veriai"),
//	        llm.MetricsMiddleware(collector, "google"),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	        llm.RateLimitMiddleware(5, 10),
//	        llm.TimeoutMiddleware(60 * time.Second),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/go-veriai/internal/ports"
)

// CoreLLM defines the minimal interface that LLM providers must implement.
// This interface abstracts the core functionality needed to make requests
// to different LLM services, allowing the middleware system to wrap
// any conforming implementation.
type CoreLLM interface {
	// DoRequest sends one request to the provider and returns the response
	// text, any grounding citations, and token usage.
	DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// WebSearcher is implemented by providers that can ground responses with
// live web search.
type WebSearcher interface {
	SupportsWebSearch() bool
}

// TokenEstimator provides pluggable token estimation strategies.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for the given text.
	EstimateTokens(text string) int
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the LLM provider.
	APIKey string

	// Model specifies which LLM model to use for requests.
	// Each provider supports different model names.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	// Leave empty to use the provider's default endpoint.
	BaseURL string

	// Timeout sets the transport timeout of the provider's HTTP client.
	// Zero value means the provider default.
	Timeout time.Duration

	// TokenEstimator provides custom token counting logic.
	// If nil, a simple character-based estimator is used.
	TokenEstimator TokenEstimator

	// Middleware allows custom middleware insertion.
	// The first middleware is the outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting functionality.
// This pattern allows composition of features like rate limiting, circuit breaking,
// metrics collection, and custom behavior without modifying core provider logic.
type Middleware func(CoreLLM) CoreLLM

// Client implements the ports.LLMClient interface with all cross-cutting concerns.
// It wraps a provider-specific CoreLLM implementation with middleware
// to provide production-ready features like resilience and observability.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
	webSearch bool
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates a new LLM client with the specified provider and configuration.
// This function assembles the middleware chain and validates configuration
// before returning a ready-to-use client instance.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := GetProviderFactory(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return newClientFromCore(core, config), nil
}

// NewClientFromCore wraps an existing CoreLLM, applying the configured
// middleware. It is used for custom providers and tests.
func NewClientFromCore(core CoreLLM, config ClientConfig) *Client {
	return newClientFromCore(core, config)
}

func newClientFromCore(core CoreLLM, config ClientConfig) *Client {
	// Capability is read from the bare provider; middleware does not change it.
	webSearch := false
	if ws, ok := core.(WebSearcher); ok {
		webSearch = ws.SupportsWebSearch()
	}

	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = &SimpleTokenEstimator{}
	}

	return &Client{
		core:      core,
		estimator: estimator,
		webSearch: webSearch,
	}
}

// Generate sends a request through the middleware chain to the provider.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	return c.core.DoRequest(ctx, req)
}

// EstimateTokens returns an approximate token count for the given text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the currently configured model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SupportsWebSearch reports whether the provider grounds responses with
// live web search.
func (c *Client) SupportsWebSearch() bool { return c.webSearch }

// SimpleTokenEstimator provides basic character-based token estimation.
// This implementation uses a simple heuristic of approximately 4 characters
// per token, which works reasonably well for most English text.
type SimpleTokenEstimator struct{}

// EstimateTokens returns an approximate token count using character-based heuristics.
func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory allows registration of custom LLM provider factories.
// This enables extension of the client with additional providers
// without modifying the core library code.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[providerType] = factory
}

// GetProviderFactory returns the factory registered for providerType.
func GetProviderFactory(providerType string) (ProviderFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := providerFactories[providerType]
	return f, ok
}

// RegisteredProviders returns the names of all registered providers, sorted.
func RegisteredProviders() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
