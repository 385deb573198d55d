package application

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/ahrav/go-veriai/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeVerifier records calls and delegates to fn.
type fakeVerifier struct {
	mu    sync.Mutex
	calls int
	texts []string
	ctxs  []context.Context
	fn    func(ctx context.Context, text string) (*domain.VerificationResult, error)
}

func (f *fakeVerifier) Verify(ctx context.Context, text string) (*domain.VerificationResult, error) {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, text)
	f.ctxs = append(f.ctxs, ctx)
	fn := f.fn
	f.mu.Unlock()

	if fn == nil {
		return eiffelResult(text), nil
	}
	return fn(ctx, text)
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeVerifier) lastContext() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ctxs) == 0 {
		return nil
	}
	return f.ctxs[len(f.ctxs)-1]
}

// gated returns a verify function that blocks until release is closed or
// ctx ends, then returns result for text.
func gated(release <-chan struct{}, result func(text string) (*domain.VerificationResult, error)) func(context.Context, string) (*domain.VerificationResult, error) {
	return func(ctx context.Context, text string) (*domain.VerificationResult, error) {
		select {
		case <-release:
			return result(text)
		case <-ctx.Done():
			return nil, domain.NewVerificationError("", ctx.Err())
		}
	}
}

func eiffelResult(text string) *domain.VerificationResult {
	return &domain.VerificationResult{
		OriginalText: text,
		OverallScore: 20,
		Claims: []domain.ClaimAnalysis{{
			ID:          domain.ClaimID(0),
			Text:        "The Eiffel Tower is in Berlin",
			Status:      domain.StatusHallucination,
			Explanation: "It is in Paris",
			Confidence:  0.99,
		}},
		Sources: []domain.GroundingSource{},
	}
}
