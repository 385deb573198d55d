package llm

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-veriai/internal/ports"
)

// retryLLM retries transient failures with exponential backoff.
// With maxRetries of zero it makes exactly one call.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries failed requests with
// exponential backoff. Only errors IsRetryableError accepts are retried;
// the last error is returned unchanged.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoRequest executes the request with automatic retry logic.
func (r *retryLLM) DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := r.next.DoRequest(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == r.maxRetries || ctx.Err() != nil || !IsRetryableError(err) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(r.calculateDelay(attempt)):
		}
	}

	return nil, lastErr
}

func (r *retryLLM) calculateDelay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	delay := r.baseDelay << attempt

	// ±25% jitter.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if r.maxDelay > 0 && delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
