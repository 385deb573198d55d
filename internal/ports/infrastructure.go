// Package ports defines the interfaces between the verification core and
// the infrastructure it depends on.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-veriai/internal/domain"
)

// SchemaType names a JSON value type in a structured-output Schema.
type SchemaType string

const (
	SchemaObject  SchemaType = "object"
	SchemaArray   SchemaType = "array"
	SchemaString  SchemaType = "string"
	SchemaNumber  SchemaType = "number"
	SchemaInteger SchemaType = "integer"
	SchemaBoolean SchemaType = "boolean"
)

// Schema is a provider-neutral description of the structured output a
// model must produce. Providers translate it into their native form.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`

	// PropertyOrdering fixes the order of object properties for providers
	// that honor it. Map iteration order is otherwise undefined.
	PropertyOrdering []string `json:"-"`
}

// GenerateRequest is one call to an LLM provider.
type GenerateRequest struct {
	// Prompt is the full user instruction.
	Prompt string

	// Schema, when set, constrains the response to JSON matching it.
	Schema *Schema

	// WebSearch asks the provider to ground the answer with live web
	// search. Providers that cannot search ignore it.
	WebSearch bool

	// Options carries provider parameters such as "temperature",
	// "max_tokens", "model" and "system".
	Options map[string]any
}

// Citation is a raw grounding citation as reported by a provider. Either
// field may be empty.
type Citation struct {
	Title string
	URI   string
}

// GenerateResponse is the result of a GenerateRequest.
type GenerateResponse struct {
	// Text is the response body; JSON when a Schema was requested.
	Text string

	// Citations are reported through the provider's grounding side channel,
	// separately from Text, in the order the provider returned them.
	Citations []Citation

	// Model is the model that served the request.
	Model string

	TokensIn  int
	TokensOut int
}

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Generate sends a single request to the provider. Implementations may
	// apply rate limiting, timeouts and circuit breaking, but must not
	// cache responses.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string

	// SupportsWebSearch reports whether the provider can ground responses
	// with live web search.
	SupportsWebSearch() bool
}

// Verifier turns input text into a VerificationResult.
// Every failure is reported as a *domain.VerificationError.
type Verifier interface {
	Verify(ctx context.Context, text string) (*domain.VerificationResult, error)
}

// SessionStore holds live sessions keyed by id. Values are opaque to the
// store. Implementations expire idle entries and must be safe for
// concurrent use.
type SessionStore interface {
	// Get returns the session for id and refreshes its idle timer.
	Get(id string) (any, bool)

	// Put stores a session under id.
	Put(id string, session any)

	// PutIfBelow stores a session under id unless limit or more live
	// sessions exist, reporting whether it stored it. The check and the
	// insert are atomic. A non-positive limit means unlimited.
	PutIfBelow(id string, session any, limit int) bool

	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(id string)

	// Len returns the number of live sessions.
	Len() int

	// OnEvict registers fn to run when a session expires or is deleted.
	OnEvict(fn func(id string, session any))
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
