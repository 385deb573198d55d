package llm

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-veriai/internal/ports"
)

// MockCoreLLM provides a configurable mock implementation of CoreLLM for testing.
// It allows precise control over response behavior, timing, and error conditions
// to facilitate middleware and verifier testing.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration
	Response      string
	Citations     []ports.Citation
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	WebSearch     bool
	ResponseDelay time.Duration

	// Handler, when set, replaces the canned response entirely.
	Handler func(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error)

	// Behavior flags
	FailUntilAttempt int  // Fail for first N attempts, then succeed
	AlternateErrors  bool // Alternate between success and failure

	// Tracking
	CallCount      int
	LastRequest    ports.GenerateRequest
	LastContext    context.Context
	Contexts       []context.Context
	CallTimestamps []time.Time
}

// NewMockCoreLLM creates a new mock CoreLLM with default successful behavior.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
		WebSearch: true,
	}
}

// DoRequest implements the CoreLLM interface with configurable behavior.
// The mock's lock is released while a response delay elapses so concurrent
// callers overlap.
func (m *MockCoreLLM) DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastRequest = req
	m.LastContext = ctx
	m.Contexts = append(m.Contexts, ctx)
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	handler := m.Handler
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if handler != nil {
		return handler(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		return nil, m.failure("simulated failure")
	}

	if m.AlternateErrors && call%2 == 0 {
		return nil, m.failure("alternating failure")
	}

	if m.Error != nil {
		return nil, m.Error
	}

	return &ports.GenerateResponse{
		Text:      m.Response,
		Citations: append([]ports.Citation(nil), m.Citations...),
		Model:     m.Model,
		TokensIn:  m.TokensIn,
		TokensOut: m.TokensOut,
	}, nil
}

func (m *MockCoreLLM) failure(msg string) error {
	if m.Error != nil {
		return m.Error
	}
	return &testError{message: msg}
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// SetError changes the configured error; nil restores success.
func (m *MockCoreLLM) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Error = err
}

// SupportsWebSearch reports the configured WebSearch flag.
func (m *MockCoreLLM) SupportsWebSearch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.WebSearch
}

// Reset clears all tracking data while preserving configuration.
func (m *MockCoreLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.LastRequest = ports.GenerateRequest{}
	m.LastContext = nil
	m.Contexts = nil
	m.CallTimestamps = nil
}

// GetCallCount returns the number of times DoRequest was called.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetLastRequest returns the most recent request.
func (m *MockCoreLLM) GetLastRequest() ports.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequest
}

// GetTimeBetweenCalls calculates the duration between two recorded calls.
// Returns nil if either index is out of range.
func (m *MockCoreLLM) GetTimeBetweenCalls(call1, call2 int) *time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call1 < 0 || call2 < 0 || call1 >= len(m.CallTimestamps) || call2 >= len(m.CallTimestamps) {
		return nil
	}

	duration := m.CallTimestamps[call2].Sub(m.CallTimestamps[call1])
	return &duration
}

// testError provides a simple error type for testing.
type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
