package llm

import (
	"fmt"
	"os"
	"sort"
)

// ProviderConfig describes a known provider: where its API key is found and
// which model it uses by default.
type ProviderConfig struct {
	// Type is the factory name passed to NewClient.
	Type string
	// EnvVars lists environment variables that may hold the API key, in
	// priority order.
	EnvVars []string
	// DefaultModel is used when no model is configured.
	DefaultModel string
	// WebSearch reports whether the provider grounds with live search.
	WebSearch bool
}

// DefaultProviders is the catalog of built-in providers.
var DefaultProviders = map[string]ProviderConfig{
	"google": {
		Type:         "google",
		EnvVars:      []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"},
		DefaultModel: GoogleDefaultModel,
		WebSearch:    true,
	},
	"openai": {
		Type:         "openai",
		EnvVars:      []string{"OPENAI_API_KEY"},
		DefaultModel: OpenAIDefaultModel,
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVars:      []string{"ANTHROPIC_API_KEY"},
		DefaultModel: AnthropicDefaultModel,
	},
}

// LookupProvider returns the catalog entry for name.
func LookupProvider(name string) (ProviderConfig, error) {
	cfg, ok := DefaultProviders[name]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("unknown provider %q (known: %v)", name, KnownProviders())
	}
	return cfg, nil
}

// KnownProviders returns the catalog's provider names, sorted.
func KnownProviders() []string {
	names := make([]string, 0, len(DefaultProviders))
	for name := range DefaultProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// APIKeyFromEnv returns the first non-empty environment variable the
// provider's catalog entry lists, and the variable's name.
func (p ProviderConfig) APIKeyFromEnv() (key, envVar string) {
	return p.apiKeyFrom(os.Getenv)
}

func (p ProviderConfig) apiKeyFrom(getenv func(string) string) (string, string) {
	for _, name := range p.EnvVars {
		if v := getenv(name); v != "" {
			return v, name
		}
	}
	return "", ""
}

// ModelOrDefault returns model, or the provider default when model is empty.
func (p ProviderConfig) ModelOrDefault(model string) string {
	if model == "" {
		return p.DefaultModel
	}
	return model
}
