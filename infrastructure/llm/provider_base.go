package llm

import (
	"sync"
)

// DefaultMaxTokens bounds the response length when a request sets no
// max_tokens. Verification responses list every claim with evidence, so
// the budget is generous.
const DefaultMaxTokens = 8192

// BaseProvider holds the model name every provider embeds. SetModel may be
// called while requests are in flight.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is ports.GenerateRequest.Options after validation.
// Providers read only this struct.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64
	System      string
	// Extra carries provider-specific keys such as top_k or seed.
	Extra map[string]any
}

// ParseRequestOptions reads the recognized keys from opts. A missing or
// out-of-range value falls back to its default instead of failing the
// request.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// reportedOrEstimated returns the provider's reported token count, or an
// estimate from text when the provider reported none.
func reportedOrEstimated(reported int64, text string) int {
	if reported > 0 {
		return int(reported)
	}
	var est SimpleTokenEstimator
	return est.EstimateTokens(text)
}
