// Package verification adapts an LLM client with web-search grounding into a
// fact-check service. It composes the analysis instruction, declares the
// structured output schema, makes exactly one model call per verification and
// turns the reply into a domain.VerificationResult.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahrav/go-veriai/internal/domain"
	"github.com/ahrav/go-veriai/internal/ports"
)

var _ ports.Verifier = (*Verifier)(nil)

// Metric names recorded by the Verifier.
const (
	MetricVerifications    = "verification_requests_total"
	MetricVerifyLatency    = "verification_duration_seconds"
	MetricClaims           = "verification_claims_total"
	MetricSources          = "verification_sources"
	MetricReliabilityScore = "verification_overall_score"
)

const (
	defaultTracerName       = "verification"
	responseSnippetMaxBytes = 200
)

// DefaultPromptTemplate asks for claim extraction, live cross-referencing and
// a legitimacy check of any citations in the text.
const DefaultPromptTemplate = `Analyze the following AI-generated text for factual accuracy and potential hallucinations.
    1. Identify key testable claims.
    2. Cross-reference them with current search results.
    3. Evaluate if any citations provided in the text are legitimate or fake.

    TEXT TO VERIFY:
    "{{.Text}}"`

// Config controls how requests are composed. The credential and model belong
// to the LLM client and are not part of Config.
type Config struct {
	// PromptTemplate is a text/template rendered with {{.Text}} bound to the
	// verbatim input.
	PromptTemplate string `yaml:"prompt_template" mapstructure:"prompt_template" validate:"required,min=20"`

	// Temperature is forwarded when set.
	Temperature *float64 `yaml:"temperature" mapstructure:"temperature" validate:"omitempty,min=0,max=2"`

	// MaxTokens caps the reply length. Zero leaves the provider default.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=0,max=65536"`

	// TopP is forwarded when set.
	TopP *float64 `yaml:"top_p" mapstructure:"top_p" validate:"omitempty,min=0,max=1"`

	// TopK is honored by Google only. Zero leaves the provider default.
	TopK int `yaml:"top_k" mapstructure:"top_k" validate:"min=0,max=40"`

	// Seed is honored by OpenAI only, for repeatable verdicts.
	Seed *int `yaml:"seed" mapstructure:"seed"`

	// WebSearch enables search grounding on providers that support it.
	WebSearch bool `yaml:"web_search" mapstructure:"web_search"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		PromptTemplate: DefaultPromptTemplate,
		WebSearch:      true,
	}
}

// ResponseSchema returns the structured output the model must produce.
func ResponseSchema() *ports.Schema {
	return &ports.Schema{
		Type: ports.SchemaObject,
		Properties: map[string]*ports.Schema{
			"overallScore": {
				Type:        ports.SchemaNumber,
				Description: "A score from 0-100 representing overall reliability.",
			},
			"claims": {
				Type: ports.SchemaArray,
				Items: &ports.Schema{
					Type: ports.SchemaObject,
					Properties: map[string]*ports.Schema{
						"text": {Type: ports.SchemaString},
						"status": {
							Type: ports.SchemaString,
							Enum: []string{
								string(domain.StatusVerified),
								string(domain.StatusUncertain),
								string(domain.StatusHallucination),
							},
						},
						"explanation":        {Type: ports.SchemaString},
						"confidence":         {Type: ports.SchemaNumber},
						"supportingEvidence": {Type: ports.SchemaString},
					},
					Required:         []string{"text", "status", "explanation"},
					PropertyOrdering: []string{"text", "status", "explanation", "confidence", "supportingEvidence"},
				},
			},
		},
		Required:         []string{"overallScore", "claims"},
		PropertyOrdering: []string{"overallScore", "claims"},
	}
}

// llmResponse is the reply body. Pointer fields distinguish a missing value
// from a zero value.
type llmResponse struct {
	OverallScore *float64   `json:"overallScore" validate:"required"`
	Claims       []llmClaim `json:"claims" validate:"required,dive"`
}

type llmClaim struct {
	Text               *string  `json:"text" validate:"required"`
	Status             *string  `json:"status" validate:"required"`
	Explanation        *string  `json:"explanation" validate:"required"`
	Confidence         *float64 `json:"confidence"`
	SupportingEvidence string   `json:"supportingEvidence"`
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithMetrics sets the collector that receives verification metrics.
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(v *Verifier) { v.metrics = collector }
}

// WithTracer overrides the tracer obtained from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(v *Verifier) {
		if tracer != nil {
			v.tracer = tracer
		}
	}
}

// Verifier is the verification adapter. It is stateless apart from its
// dependencies and safe for concurrent use.
type Verifier struct {
	client    ports.LLMClient
	config    Config
	prompt    *template.Template
	schema    *ports.Schema
	validator *validator.Validate
	logger    *zap.Logger
	metrics   ports.MetricsCollector
	tracer    trace.Tracer
}

// NewVerifier creates a Verifier that sends requests through client.
func NewVerifier(client ports.LLMClient, config Config, opts ...Option) (*Verifier, error) {
	if client == nil {
		return nil, fmt.Errorf("verifier: LLM client cannot be nil")
	}

	v := &Verifier{
		client:    client,
		config:    config,
		schema:    ResponseSchema(),
		validator: newResponseValidator(),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(defaultTracerName),
	}
	for _, opt := range opts {
		opt(v)
	}

	if err := v.validator.Struct(config); err != nil {
		return nil, fmt.Errorf("verifier: %w: %w", domain.ErrInvalidConfiguration, err)
	}

	tmpl, err := template.New("verificationPrompt").Parse(config.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("verifier: failed to parse prompt template: %w", err)
	}
	v.prompt = tmpl

	if config.WebSearch && !client.SupportsWebSearch() {
		v.logger.Warn("LLM provider does not support web search; claims will be judged without live grounding",
			zap.String("model", client.GetModel()))
	}

	return v, nil
}

// newResponseValidator reports field names by their JSON tag so missing-field
// errors name the wire field.
func newResponseValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Verify checks text for factual accuracy. It makes exactly one LLM call and
// never retries on its own. Every failure is a *domain.VerificationError whose
// Message is suitable for display.
func (v *Verifier) Verify(ctx context.Context, text string) (*domain.VerificationResult, error) {
	ctx, span := v.tracer.Start(ctx, "Verifier.Verify",
		trace.WithAttributes(
			attribute.Int("verify.input_length", len(text)),
			attribute.String("llm.model", v.client.GetModel()),
			attribute.Bool("verify.web_search", v.webSearch()),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := v.verify(ctx, text)
	elapsed := time.Since(start)
	v.recordMetrics(elapsed, result, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		v.logger.Warn("verification failed",
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("verify.overall_score", result.OverallScore),
		attribute.Int("verify.claims", len(result.Claims)),
		attribute.Int("verify.sources", len(result.Sources)),
	)
	v.logger.Debug("verification completed",
		zap.Duration("elapsed", elapsed),
		zap.Float64("overall_score", result.OverallScore),
		zap.Int("claims", len(result.Claims)),
		zap.Int("sources", len(result.Sources)),
	)
	return result, nil
}

func (v *Verifier) verify(ctx context.Context, text string) (*domain.VerificationResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewVerificationError("", domain.ErrEmptyInput)
	}

	prompt, err := v.buildPrompt(text)
	if err != nil {
		return nil, domain.NewVerificationError("failed to build verification request", err)
	}

	resp, err := v.client.Generate(ctx, ports.GenerateRequest{
		Prompt:    prompt,
		Schema:    v.schema,
		WebSearch: v.webSearch(),
		Options:   v.requestOptions(),
	})
	if err != nil {
		// The client's message is shown as-is.
		return nil, domain.NewVerificationError(err.Error(), err)
	}
	if resp == nil {
		return nil, domain.NewVerificationError("", fmt.Errorf("%w: empty response", ports.ErrInvalidResponse))
	}

	parsed, err := v.parseResponse(resp.Text)
	if err != nil {
		return nil, domain.NewVerificationError("", err)
	}

	claims, err := buildClaims(parsed.Claims)
	if err != nil {
		return nil, domain.NewVerificationError("", err)
	}

	return &domain.VerificationResult{
		OriginalText: text,
		OverallScore: *parsed.OverallScore,
		Claims:       claims,
		Sources:      buildSources(resp.Citations),
	}, nil
}

func (v *Verifier) webSearch() bool {
	return v.config.WebSearch && v.client.SupportsWebSearch()
}

// buildPrompt renders the template with the input embedded verbatim.
func (v *Verifier) buildPrompt(text string) (string, error) {
	var buf bytes.Buffer
	if err := v.prompt.Execute(&buf, struct{ Text string }{Text: text}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

func (v *Verifier) requestOptions() map[string]any {
	opts := make(map[string]any, 5)
	if v.config.Temperature != nil {
		opts["temperature"] = *v.config.Temperature
	}
	if v.config.MaxTokens > 0 {
		opts["max_tokens"] = v.config.MaxTokens
	}
	if v.config.TopP != nil {
		opts["top_p"] = *v.config.TopP
	}
	if v.config.TopK > 0 {
		opts["top_k"] = v.config.TopK
	}
	if v.config.Seed != nil {
		opts["seed"] = *v.config.Seed
	}
	return opts
}

// parseResponse decodes and validates the reply. There is no partial
// recovery: any defect fails the whole verification.
func (v *Verifier) parseResponse(body string) (*llmResponse, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response body", ports.ErrInvalidResponse)
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse verification response (%s): %w",
			ports.ErrInvalidResponse, snippet(body), err)
	}

	if err := v.validator.Struct(parsed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			missing := domain.NewValidationError("verification response")
			for _, path := range fieldPaths(verrs) {
				missing.AddError(path + " is required")
			}
			if missing.HasErrors() {
				return nil, fmt.Errorf("%w: %w", domain.ErrMissingField, missing)
			}
		}
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err)
	}
	return &parsed, nil
}

// fieldPaths returns wire paths such as "claims[0].text" for each failure.
func fieldPaths(verrs validator.ValidationErrors) []string {
	paths := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		paths = append(paths, ns)
	}
	return paths
}

// buildClaims assigns positional ids and checks every status. Ids returned by
// the model, if any, are ignored.
func buildClaims(raw []llmClaim) ([]domain.ClaimAnalysis, error) {
	claims := make([]domain.ClaimAnalysis, 0, len(raw))
	for i, c := range raw {
		status, err := domain.ParseClaimStatus(*c.Status)
		if err != nil {
			return nil, fmt.Errorf("claims[%d]: %w", i, err)
		}

		var confidence float64
		if c.Confidence != nil {
			confidence = *c.Confidence
		}

		claims = append(claims, domain.ClaimAnalysis{
			ID:                 domain.ClaimID(i),
			Text:               *c.Text,
			Status:             status,
			Explanation:        *c.Explanation,
			Confidence:         confidence,
			SupportingEvidence: c.SupportingEvidence,
		})
	}
	return claims, nil
}

// buildSources keeps provider order and drops citations without a URI.
func buildSources(citations []ports.Citation) []domain.GroundingSource {
	sources := make([]domain.GroundingSource, 0, len(citations))
	for _, c := range citations {
		if src, ok := domain.NewGroundingSource(c.Title, c.URI); ok {
			sources = append(sources, src)
		}
	}
	return sources
}

func (v *Verifier) recordMetrics(elapsed time.Duration, result *domain.VerificationResult, err error) {
	if v.metrics == nil {
		return
	}

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrEmptyInput):
		status = "rejected"
	case errors.Is(err, domain.ErrMissingField), errors.Is(err, domain.ErrInvalidClaimStatus),
		errors.Is(err, ports.ErrInvalidResponse):
		status = "invalid_response"
	default:
		status = "error"
	}

	labels := map[string]string{"status": status}
	v.metrics.RecordCounter(MetricVerifications, 1, labels)
	v.metrics.RecordLatency(MetricVerifyLatency, elapsed, labels)

	if result == nil {
		return
	}
	for s, n := range result.StatusCounts() {
		if n > 0 {
			v.metrics.RecordCounter(MetricClaims, float64(n), map[string]string{"status": string(s)})
		}
	}
	v.metrics.RecordHistogram(MetricSources, float64(len(result.Sources)), nil)
	v.metrics.RecordHistogram(MetricReliabilityScore, result.OverallScore, nil)
}

func snippet(s string) string {
	if len(s) <= responseSnippetMaxBytes {
		return s
	}
	return s[:responseSnippetMaxBytes] + "..."
}
