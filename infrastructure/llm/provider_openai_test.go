package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-veriai/internal/ports"
)

const openAICompletionBody = `{
	"id": "chatcmpl-test123",
	"object": "chat.completion",
	"created": 1677652288,
	"model": "gpt-4.1",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": %q},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": %d, "completion_tokens": %d, "total_tokens": 0}
}`

func newOpenAITestServer(t *testing.T, content string, in, out int, inspect func(body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer test-api-key")

		if inspect != nil {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			inspect(body)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, openAICompletionBody, content, in, out)
	}))
}

// TestOpenAIProvider_DoRequest verifies successful requests with and without
// a response schema.
func TestOpenAIProvider_DoRequest(t *testing.T) {
	tests := []struct {
		name              string
		req               ports.GenerateRequest
		usageIn, usageOut int
		expectedTokensIn  int
		expectedTokensOut int
		inspect           func(t *testing.T, body map[string]any)
	}{
		{
			name:              "basic request",
			req:               ports.GenerateRequest{Prompt: "Hello, world!"},
			usageIn:           9,
			usageOut:          12,
			expectedTokensIn:  9,
			expectedTokensOut: 12,
			inspect: func(t *testing.T, body map[string]any) {
				assert.NotContains(t, body, "response_format")
			},
		},
		{
			name: "schema becomes json_schema response format",
			req: ports.GenerateRequest{
				Prompt: "Verify this",
				Schema: &ports.Schema{
					Type:       ports.SchemaObject,
					Required:   []string{"overallScore"},
					Properties: map[string]*ports.Schema{"overallScore": {Type: ports.SchemaNumber}},
				},
				WebSearch: true,
			},
			usageIn:           20,
			usageOut:          5,
			expectedTokensIn:  20,
			expectedTokensOut: 5,
			inspect: func(t *testing.T, body map[string]any) {
				rf, ok := body["response_format"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "json_schema", rf["type"])
				js, ok := rf["json_schema"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, openAISchemaName, js["name"])
				assert.NotContains(t, body, "tools")
			},
		},
		{
			name: "system prompt and options",
			req: ports.GenerateRequest{
				Prompt:  "Hi",
				Options: map[string]any{"system": "Be terse.", "temperature": 0.2, "max_tokens": 100},
			},
			expectedTokensIn:  0,
			expectedTokensOut: 0,
			inspect: func(t *testing.T, body map[string]any) {
				msgs, ok := body["messages"].([]any)
				require.True(t, ok)
				require.Len(t, msgs, 2)
				assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
				assert.InDelta(t, 0.2, body["temperature"], 0.0001)
				assert.EqualValues(t, 100, body["max_completion_tokens"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `{"overallScore": 80, "claims": []}`
			server := newOpenAITestServer(t, content, tt.usageIn, tt.usageOut, func(body map[string]any) {
				tt.inspect(t, body)
			})
			defer server.Close()

			provider, err := newOpenAIProvider(ClientConfig{
				APIKey:  "test-api-key",
				BaseURL: server.URL + "/v1",
			})
			require.NoError(t, err)

			resp, err := provider.DoRequest(context.Background(), tt.req)
			require.NoError(t, err)

			assert.Equal(t, content, resp.Text)
			assert.Empty(t, resp.Citations)
			assert.Equal(t, OpenAIDefaultModel, resp.Model)
			if tt.expectedTokensIn > 0 {
				assert.Equal(t, tt.expectedTokensIn, resp.TokensIn)
				assert.Equal(t, tt.expectedTokensOut, resp.TokensOut)
			} else {
				assert.Positive(t, resp.TokensOut)
			}
		})
	}
}

// TestOpenAIProvider_ErrorHandling ensures API errors are classified.
func TestOpenAIProvider_ErrorHandling(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		responseBody   string
		expectedErrMsg string
		expectedType   ErrorType
	}{
		{
			name:           "authentication_error",
			statusCode:     401,
			responseBody:   `{"error": {"message": "Invalid API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`,
			expectedErrMsg: "authentication failed",
			expectedType:   ErrorTypeAuthentication,
		},
		{
			name:           "rate_limit_error",
			statusCode:     429,
			responseBody:   `{"error": {"message": "Rate limit exceeded", "type": "insufficient_quota", "code": "rate_limit_exceeded"}}`,
			expectedErrMsg: "rate limit exceeded",
			expectedType:   ErrorTypeRateLimit,
		},
		{
			name:           "server_error",
			statusCode:     500,
			responseBody:   `{"error": {"message": "Internal server error", "type": "server_error"}}`,
			expectedErrMsg: "server_error",
			expectedType:   ErrorTypeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.responseBody)
			}))
			defer server.Close()

			provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL + "/v1"})
			require.NoError(t, err)

			_, err = provider.DoRequest(context.Background(), ports.GenerateRequest{Prompt: "test prompt"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErrMsg)

			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.expectedType, perr.Type)
		})
	}
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "x", "object": "chat.completion", "choices": []}`)
	}))
	defer server.Close()

	provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	_, err = provider.DoRequest(context.Background(), ports.GenerateRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoResponseChoice)
}

// TestOpenAIProvider_ContextCancellation verifies that a canceled context
// never reaches the server.
func TestOpenAIProvider_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Server handler should not be called due to context cancellation")
	}))
	defer server.Close()

	provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = provider.DoRequest(ctx, ports.GenerateRequest{Prompt: "test prompt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

// TestOpenAIProvider_Configuration validates API key handling and model management.
func TestOpenAIProvider_Configuration(t *testing.T) {
	t.Run("missing_api_key", func(t *testing.T) {
		_, err := newOpenAIProvider(ClientConfig{Model: "gpt-4.1"})
		assert.ErrorIs(t, err, ErrEmptyAPIKey)
	})

	t.Run("default_model", func(t *testing.T) {
		provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-key"})
		require.NoError(t, err)
		assert.Equal(t, OpenAIDefaultModel, provider.GetModel())
	})

	t.Run("invalid_base_url", func(t *testing.T) {
		_, err := newOpenAIProvider(ClientConfig{APIKey: "test-key", BaseURL: "not a url"})
		assert.Error(t, err)
	})

	t.Run("model_update", func(t *testing.T) {
		provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-key", Model: "gpt-4.1"})
		require.NoError(t, err)

		provider.SetModel("gpt-4.1-mini")
		assert.Equal(t, "gpt-4.1-mini", provider.GetModel())
	})

	t.Run("no_web_search", func(t *testing.T) {
		provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-key"})
		require.NoError(t, err)
		ws, ok := provider.(WebSearcher)
		require.True(t, ok)
		assert.False(t, ws.SupportsWebSearch())
	})
}

// TestOpenAIProvider_ThreadSafety issues concurrent requests while the model
// is being changed.
func TestOpenAIProvider_ThreadSafety(t *testing.T) {
	server := newOpenAITestServer(t, "ok", 1, 1, nil)
	defer server.Close()

	provider, err := newOpenAIProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := provider.DoRequest(context.Background(), ports.GenerateRequest{Prompt: "x"})
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			provider.SetModel(fmt.Sprintf("gpt-4.1-%d", i))
		}(i)
	}
	wg.Wait()
}

// TestOpenAIProvider_Integration runs against the live API when OPENAI_API_KEY is set.
func TestOpenAIProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	provider, err := newOpenAIProvider(ClientConfig{APIKey: apiKey, Model: "gpt-4.1-mini"})
	require.NoError(t, err)

	resp, err := provider.DoRequest(context.Background(), ports.GenerateRequest{Prompt: "Say hello."})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
}
