package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-veriai/internal/ports"
)

// GoogleDefaultModel is the default model for the Google provider.
const GoogleDefaultModel = "gemini-3-flash-preview"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements the CoreLLM interface for Google's Gemini API.
// It is the only provider that grounds answers with Google Search and
// reports the grounding citations.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	errorClassifier *ErrorClassifier
}

// newGoogleProvider creates a new Google Gemini provider instance.
// It returns an error if the required configuration is missing or invalid.
func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	authConfig, err := buildAuthConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	client, err := genai.NewClient(context.Background(), authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// SupportsWebSearch reports true; Gemini grounds with Google Search.
func (p *googleProvider) SupportsWebSearch() bool { return true }

// DoRequest sends a request to the Gemini API. When req.WebSearch is set the
// Google Search tool is enabled and the grounding chunks of the first
// candidate are returned as citations.
func (p *googleProvider) DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	options := ParseRequestOptions(req.Options, p.GetModel())

	contents := p.buildContents(req.Prompt, options)
	config := p.buildGenerationConfig(req, options)

	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, config)
	if err != nil {
		return nil, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &ports.GenerateResponse{
		Text:      content,
		Citations: extractCitations(resp),
		Model:     options.Model,
		TokensIn:  reportedOrEstimated(promptTokens(resp.UsageMetadata), req.Prompt),
		TokensOut: reportedOrEstimated(candidateTokens(resp.UsageMetadata), content),
	}, nil
}

// extractCitations collects the web grounding chunks of the first candidate
// in the order Gemini reported them. Non-web chunks are skipped; empty
// fields are passed through for the caller to normalize.
func extractCitations(resp *genai.GenerateContentResponse) []ports.Citation {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}

	citations := make([]ports.Citation, 0, len(meta.GroundingChunks))
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		citations = append(citations, ports.Citation{
			Title: chunk.Web.Title,
			URI:   chunk.Web.URI,
		})
	}
	return citations
}

// buildContents creates the single user turn. Gemini has no system role in
// this request shape, so a system prompt is prepended.
func (p *googleProvider) buildContents(prompt string, options RequestOptions) []*genai.Content {
	finalPrompt := prompt
	if options.System != "" {
		finalPrompt = fmt.Sprintf("System: %s\n\nUser: %s", options.System, prompt)
	}

	return []*genai.Content{
		genai.NewContentFromText(finalPrompt, genai.RoleUser),
	}
}

// buildGenerationConfig maps the request onto Gemini's generation config:
// search tool, JSON response schema and sampling parameters.
func (p *googleProvider) buildGenerationConfig(req ports.GenerateRequest, options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenaiSchema(req.Schema)
	}

	if options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*options.Temperature))
	}

	if options.MaxTokens > 0 {
		if options.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(options.MaxTokens)
		}
	}

	if options.TopP != nil {
		config.TopP = genai.Ptr(float32(*options.TopP))
	}

	if topK, ok := SafeInt(options.Extra["top_k"]); ok {
		config.TopK = genai.Ptr(float32(min(max(topK, 1), 40)))
	}

	return config
}

// handleError classifies context, genai and googleapi errors into a
// ProviderError.
func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return p.classifyStatus(apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return p.classifyStatus(apiErrPtr.Code, apiErrPtr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		message := gErr.Message
		if message == "" && len(gErr.Errors) > 0 {
			message = gErr.Errors[0].Message
		}
		for _, e := range gErr.Errors {
			if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
				return NewProviderError("google", ErrorTypeContentPolicy, gErr.Code,
					"request blocked by safety filters", err)
			}
		}
		return p.classifyStatus(gErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

func (p *googleProvider) classifyStatus(code int, message string, err error) error {
	if isContentPolicyMessage(message) {
		return NewProviderError("google", ErrorTypeContentPolicy, code,
			"request blocked by safety filters", err)
	}
	return p.errorClassifier.ClassifyHTTPError(code, message, err)
}

// buildAuthConfig creates the client configuration. Only API key
// authentication is supported; a credentials file path is rejected.
func buildAuthConfig(config ClientConfig) (*genai.ClientConfig, error) {
	if looksLikeFilePath(config.APIKey) {
		if !fileExists(config.APIKey) {
			return nil, fmt.Errorf("credentials file not found: %s", config.APIKey)
		}
		return nil, fmt.Errorf("service account authentication is not supported; use an API key")
	}

	baseURL, err := ValidateBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	cc := &genai.ClientConfig{
		APIKey:      config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: timeout}
	}
	return cc, nil
}

// looksLikeFilePath checks if a string appears to be a file path rather
// than an API key.
func looksLikeFilePath(s string) bool {
	if filepath.IsAbs(s) {
		return true
	}

	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	lower := strings.ToLower(s)
	return strings.HasSuffix(lower, ".json") ||
		strings.HasSuffix(lower, ".p12") ||
		strings.HasSuffix(lower, ".pem") ||
		strings.Contains(lower, "credentials")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isContentPolicyMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "safety") ||
		strings.Contains(lower, "policy") ||
		strings.Contains(lower, "blocked")
}

func promptTokens(usage *genai.GenerateContentResponseUsageMetadata) int64 {
	if usage == nil {
		return 0
	}
	return int64(usage.PromptTokenCount)
}

func candidateTokens(usage *genai.GenerateContentResponseUsageMetadata) int64 {
	if usage == nil {
		return 0
	}
	return int64(usage.CandidatesTokenCount)
}
