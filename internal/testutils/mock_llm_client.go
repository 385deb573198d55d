// Package testutils provides a scripted LLM client for exercising the
// verification pipeline without a provider.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-veriai/internal/ports"
)

// MockLLMClient implements ports.LLMClient with deterministic responses
// chosen by substring matching against the prompt.
// It is safe for concurrent use.
type MockLLMClient struct {
	mu sync.Mutex
	// model is the mock model identifier.
	model string
	// webSearch is reported by SupportsWebSearch.
	webSearch bool
	// responses are checked in insertion order; the first match wins.
	responses []MockResponse
	// fallback answers prompts that match nothing.
	fallback MockResponse
	// requests records every Generate call.
	requests []ports.GenerateRequest
}

// MockResponse is a scripted reply for prompts containing Pattern.
type MockResponse struct {
	// Pattern is matched case-insensitively against the prompt. An empty
	// pattern matches everything.
	Pattern string
	// Body is returned as the response text.
	Body string
	// Citations are returned as grounding metadata.
	Citations []ports.Citation
	// Err, when set, is returned instead of a response.
	Err error
}

// NewMockLLMClient creates a client preloaded with the fact-check fixtures
// and a fallback that reports no claims.
func NewMockLLMClient(model string) *MockLLMClient {
	m := &MockLLMClient{model: model, webSearch: true}
	m.setupDefaultResponses()
	return m
}

func (m *MockLLMClient) setupDefaultResponses() {
	m.responses = append(m.responses[:0], DefaultFixtures()...)
	m.fallback = MockResponse{Body: NoClaimsResponse}
}

// AddResponse registers r ahead of every existing response.
func (m *MockLLMClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]MockResponse{r}, m.responses...)
}

// FailOn makes prompts containing pattern fail with err.
func (m *MockLLMClient) FailOn(pattern string, err error) {
	m.AddResponse(MockResponse{Pattern: pattern, Err: err})
}

// SetWebSearch changes what SupportsWebSearch reports.
func (m *MockLLMClient) SetWebSearch(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webSearch = enabled
}

// Generate implements ports.LLMClient.
func (m *MockLLMClient) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	r := m.match(req.Prompt)
	model := m.model
	m.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return &ports.GenerateResponse{
		Text:      r.Body,
		Citations: append([]ports.Citation(nil), r.Citations...),
		Model:     model,
		TokensIn:  estimateTokens(req.Prompt),
		TokensOut: estimateTokens(r.Body),
	}, nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SupportsWebSearch implements ports.LLMClient.
func (m *MockLLMClient) SupportsWebSearch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.webSearch
}

// Requests returns a copy of every request received so far.
func (m *MockLLMClient) Requests() []ports.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.GenerateRequest(nil), m.requests...)
}

// Reset restores the default fixtures and forgets recorded requests.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.setupDefaultResponses()
}

func (m *MockLLMClient) match(prompt string) MockResponse {
	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r
		}
	}
	return m.fallback
}

// EstimateTokens uses the same four-characters-per-token estimate as the
// token counts in Generate responses.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	return estimateTokens(text), nil
}

// estimateTokens approximates four characters per token.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return max(len(text)/4, 1)
}

var _ ports.LLMClient = (*MockLLMClient)(nil)
