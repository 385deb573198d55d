package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-veriai/internal/ports"
)

// timeoutLLM bounds each request with a deadline.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware bounds every provider call by timeout. When this bound,
// not the caller's, ends the call, the error wraps both ports.ErrTimeout and
// context.DeadlineExceeded. A non-positive timeout disables the middleware.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		if timeout <= 0 {
			return next
		}
		return &timeoutLLM{
			next:    next,
			timeout: timeout,
		}
	}
}

func (t *timeoutLLM) DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.next.DoRequest(callCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: no response within %s: %w", ports.ErrTimeout, t.timeout, context.DeadlineExceeded)
	}
	return resp, err
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
