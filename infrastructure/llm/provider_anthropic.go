package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/go-veriai/internal/ports"
)

// AnthropicDefaultModel is the default Anthropic model.
const AnthropicDefaultModel = "claude-sonnet-4-5"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements the CoreLLM interface for Anthropic's Messages API.
// The Messages API has no JSON schema mode here, so the schema is appended
// to the prompt as an instruction. Responses carry no citations.
type anthropicProvider struct {
	BaseProvider
	client          anthropic.Client
	errorClassifier *ErrorClassifier
}

// newAnthropicProvider creates a new Anthropic provider instance. SDK-level
// retries are disabled; retrying is the retry middleware's job.
func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(validatedURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: ValidateTimeout(config.Timeout)}))
	}

	return &anthropicProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          anthropic.NewClient(opts...),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// SupportsWebSearch reports false.
func (p *anthropicProvider) SupportsWebSearch() bool { return false }

// DoRequest sends a request to the Messages API and returns the
// concatenated text blocks of the reply.
func (p *anthropicProvider) DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	options := ParseRequestOptions(req.Options, p.GetModel())

	prompt := req.Prompt
	if req.Schema != nil {
		suffix, err := schemaInstruction(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: encode schema: %w", err)
		}
		prompt += suffix
	}

	message, err := p.client.Messages.New(ctx, p.buildParams(prompt, options))
	if err != nil {
		return nil, p.handleError(err)
	}

	text := extractAnthropicText(message)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	return &ports.GenerateResponse{
		Text:      text,
		Model:     options.Model,
		TokensIn:  reportedOrEstimated(message.Usage.InputTokens, prompt),
		TokensOut: reportedOrEstimated(message.Usage.OutputTokens, text),
	}, nil
}

func (p *anthropicProvider) buildParams(prompt string, options RequestOptions) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if options.Temperature != nil {
		// Anthropic caps temperature at 1.0.
		params.Temperature = anthropic.Float(min(*options.Temperature, 1.0))
	}

	if options.TopP != nil {
		params.TopP = anthropic.Float(*options.TopP)
	}

	if options.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.System}}
	}

	return params
}

// extractAnthropicText joins the text blocks of a reply and strips a
// Markdown code fence if the model wrapped its JSON in one.
func extractAnthropicText(message *anthropic.Message) string {
	if message == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return stripCodeFence(b.String())
}

func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
}

// handleError classifies context and API errors into a ProviderError.
func (p *anthropicProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.errorClassifier.ClassifyHTTPError(apiErr.StatusCode, "request failed", err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
