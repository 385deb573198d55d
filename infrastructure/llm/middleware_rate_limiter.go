package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-veriai/internal/ports"
)

// rateLimitedLLM paces outgoing requests with a token bucket so bursts of
// submissions stay under the provider's quota.
type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware shares one token bucket across every client built
// from the returned middleware. limit is in requests per second; burst lets
// a quiet client send several verifications at once.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{
			next:    next,
			limiter: limiter,
		}
	}
}

// DoRequest waits for a token before forwarding the request. A wait that
// cannot finish before ctx's deadline fails fast with ports.ErrRateLimited,
// so the caller sees a quota problem rather than a provider timeout.
func (r *rateLimitedLLM) DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("rate limit wait: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: no request slot before deadline: %w", ports.ErrRateLimited, err)
	}
	return r.next.DoRequest(ctx, req)
}

// GetModel returns the model name from the wrapped implementation.
func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }
