package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-veriai/internal/ports"
)

type mockUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type mockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type mockResponse struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []mockContent `json:"content"`
	Model   string        `json:"model"`
	Usage   mockUsage     `json:"usage"`
}

type mockErrorResponse struct {
	Type  string    `json:"type"`
	Error mockError `json:"error"`
}

type mockError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeAnthropicReply(w http.ResponseWriter, usage mockUsage, texts ...string) {
	content := make([]mockContent, 0, len(texts))
	for _, t := range texts {
		content = append(content, mockContent{Type: "text", Text: t})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(mockResponse{
		ID:      "msg_test_id",
		Type:    "message",
		Role:    "assistant",
		Content: content,
		Model:   AnthropicDefaultModel,
		Usage:   usage,
	})
}

func TestNewAnthropicProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      ClientConfig
		expectError bool
	}{
		{
			name:   "valid config with all fields",
			config: ClientConfig{APIKey: "test-api-key", Model: AnthropicDefaultModel, BaseURL: "https://api.anthropic.com"},
		},
		{name: "valid config with minimal fields", config: ClientConfig{APIKey: "test-api-key"}},
		{name: "empty API key", config: ClientConfig{}, expectError: true},
		{name: "invalid base URL", config: ClientConfig{APIKey: "k", BaseURL: "::"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := newAnthropicProvider(tt.config)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, provider)
				return
			}

			require.NoError(t, err)
			expectedModel := tt.config.Model
			if expectedModel == "" {
				expectedModel = AnthropicDefaultModel
			}
			assert.Equal(t, expectedModel, provider.GetModel())
		})
	}
}

func TestAnthropicProvider_DoRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		assert.Equal(t, AnthropicDefaultModel, reqBody["model"])
		assert.Equal(t, float64(DefaultMaxTokens), reqBody["max_tokens"])
		assert.Len(t, reqBody["messages"], 1)

		writeAnthropicReply(w, mockUsage{InputTokens: 10, OutputTokens: 15}, "Hello! This is a test response.")
	}))
	defer server.Close()

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.DoRequest(context.Background(), ports.GenerateRequest{Prompt: "Hello, world!"})
	require.NoError(t, err)
	assert.Equal(t, "Hello! This is a test response.", resp.Text)
	assert.Equal(t, 10, resp.TokensIn)
	assert.Equal(t, 15, resp.TokensOut)
	assert.Empty(t, resp.Citations)
}

// TestAnthropicProvider_DoRequest_SchemaInPrompt ensures the schema is sent
// as a prompt instruction and a fenced JSON reply is unwrapped.
func TestAnthropicProvider_DoRequest_SchemaInPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody struct {
			Messages []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		require.Len(t, reqBody.Messages, 1)
		require.NotEmpty(t, reqBody.Messages[0].Content)
		prompt := reqBody.Messages[0].Content[0].Text
		assert.True(t, strings.HasPrefix(prompt, "Verify this"))
		assert.Contains(t, prompt, `"overallScore"`)

		writeAnthropicReply(w, mockUsage{InputTokens: 1, OutputTokens: 1}, "```json\n{\"overallScore\": 50, \"claims\": []}\n```")
	}))
	defer server.Close()

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.DoRequest(context.Background(), ports.GenerateRequest{
		Prompt: "Verify this",
		Schema: &ports.Schema{
			Type:       ports.SchemaObject,
			Properties: map[string]*ports.Schema{"overallScore": {Type: ports.SchemaNumber}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"overallScore": 50, "claims": []}`, resp.Text)
}

func TestAnthropicProvider_DoRequest_WithOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		assert.Equal(t, "claude-opus-4-1", reqBody["model"])
		assert.Equal(t, float64(2048), reqBody["max_tokens"])
		assert.Equal(t, 0.7, reqBody["temperature"])

		system := reqBody["system"].([]any)
		require.Len(t, system, 1)
		assert.Equal(t, "You are a helpful assistant.", system[0].(map[string]any)["text"])

		writeAnthropicReply(w, mockUsage{InputTokens: 20, OutputTokens: 25}, "First part. ", "Second part.")
	}))
	defer server.Close()

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.DoRequest(context.Background(), ports.GenerateRequest{
		Prompt: "Test prompt",
		Options: map[string]any{
			"model":       "claude-opus-4-1",
			"max_tokens":  2048,
			"temperature": 0.7,
			"system":      "You are a helpful assistant.",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "First part. Second part.", resp.Text)
	assert.Equal(t, "claude-opus-4-1", resp.Model)
	assert.Equal(t, 20, resp.TokensIn)
	assert.Equal(t, 25, resp.TokensOut)
}

// TestAnthropicProvider_DoRequest_Errors ensures HTTP errors are classified
// and that the SDK does not retry on its own.
func TestAnthropicProvider_DoRequest_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		errType      string
		expectedType ErrorType
	}{
		{name: "auth", status: http.StatusUnauthorized, errType: "authentication_error", expectedType: ErrorTypeAuthentication},
		{name: "rate limit", status: http.StatusTooManyRequests, errType: "rate_limit_error", expectedType: ErrorTypeRateLimit},
		{name: "overloaded", status: http.StatusServiceUnavailable, errType: "overloaded_error", expectedType: ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(mockErrorResponse{
					Type:  "error",
					Error: mockError{Type: tt.errType, Message: "nope"},
				})
			}))
			defer server.Close()

			provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL})
			require.NoError(t, err)

			resp, err := provider.DoRequest(context.Background(), ports.GenerateRequest{Prompt: "Test"})
			require.Error(t, err)
			assert.Nil(t, resp)

			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.expectedType, perr.Type)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestAnthropicProvider_DoRequest_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writeAnthropicReply(w, mockUsage{InputTokens: 5, OutputTokens: 5}, "Response")
	}))
	defer server.Close()

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = provider.DoRequest(ctx, ports.GenerateRequest{Prompt: "Test"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrTimeout)
}

func TestAnthropicProvider_DoRequest_TokenFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAnthropicReply(w, mockUsage{}, "Test response")
	}))
	defer server.Close()

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.DoRequest(context.Background(), ports.GenerateRequest{Prompt: "Hello world"})
	require.NoError(t, err)
	assert.Greater(t, resp.TokensIn, 0)
	assert.Greater(t, resp.TokensOut, 0)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "```\n{\"a\":1}\n```\n", want: `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFence(tt.in))
	}
}
