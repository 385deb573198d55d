package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-veriai/internal/ports"
)

// OpenAIDefaultModel is the default model for the OpenAI provider.
const OpenAIDefaultModel = "gpt-4.1"

// openAISchemaName names the structured-output schema sent to OpenAI.
const openAISchemaName = "verification_result"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements the CoreLLM interface for OpenAI's chat API.
// Chat completions cannot search the web, so responses carry no citations.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	errorClassifier *ErrorClassifier
}

// newOpenAIProvider creates a new OpenAI provider instance.
func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// SupportsWebSearch reports false.
func (p *openAIProvider) SupportsWebSearch() bool { return false }

// DoRequest sends a chat completion request. A request schema is sent as a
// JSON Schema response format; req.WebSearch is ignored.
func (p *openAIProvider) DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	options := ParseRequestOptions(req.Options, p.GetModel())

	chatReq := p.buildChatCompletionRequest(req, options)
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &ports.GenerateResponse{
		Text:      content,
		Model:     options.Model,
		TokensIn:  reportedOrEstimated(int64(resp.Usage.PromptTokens), req.Prompt),
		TokensOut: reportedOrEstimated(int64(resp.Usage.CompletionTokens), content),
	}, nil
}

// buildChatCompletionRequest creates an openai.ChatCompletionRequest from a
// request and its parsed options.
func (p *openAIProvider) buildChatCompletionRequest(req ports.GenerateRequest, options RequestOptions) openai.ChatCompletionRequest {
	chatReq := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: p.buildMessages(req.Prompt, options),
	}

	if req.Schema != nil {
		schema := toJSONSchema(req.Schema)
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   openAISchemaName,
				Schema: &schema,
				// Strict mode requires every property to be required.
				Strict: false,
			},
		}
	}

	p.applyRequestParameters(&chatReq, options)
	return chatReq
}

// buildMessages creates the message slice from the user prompt and an
// optional system prompt.
func (p *openAIProvider) buildMessages(prompt string, options RequestOptions) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)

	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}

	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}

func (p *openAIProvider) applyRequestParameters(req *openai.ChatCompletionRequest, options RequestOptions) {
	if options.Temperature != nil {
		req.Temperature = float32(*options.Temperature)
	}

	if options.MaxTokens > 0 {
		req.MaxCompletionTokens = options.MaxTokens
	}

	if options.TopP != nil {
		req.TopP = float32(*options.TopP)
	}

	if seed, ok := SafeInt(options.Extra["seed"]); ok {
		req.Seed = &seed
	}
}

// handleError classifies context, API and transport errors.
func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.errorClassifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}
