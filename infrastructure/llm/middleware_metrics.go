package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-veriai/internal/ports"
)

// Metric names recorded by MetricsMiddleware.
const (
	MetricLLMLatency   = "llm_latency_seconds"
	MetricLLMRequests  = "llm_requests_total"
	MetricLLMTokens    = "llm_tokens_total"
	MetricLLMCitations = "llm_citations_total"
)

// metricsLLM records latency, outcome, token usage and citation counts for
// every request.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
	provider  string
}

// MetricsMiddleware creates middleware that collects request metrics
// labeled with the given provider name.
func MetricsMiddleware(collector ports.MetricsCollector, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			collector: collector,
			provider:  provider,
		}
	}
}

// DoRequest executes the request while collecting metrics.
func (m *metricsLLM) DoRequest(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	start := time.Now()
	resp, err := m.next.DoRequest(ctx, req)

	if m.collector == nil {
		return resp, err
	}

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   requestStatus(ctx, err),
	}

	m.collector.RecordHistogram(MetricLLMLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(MetricLLMRequests, 1, labels)

	if err == nil && resp != nil {
		tokenLabels := map[string]string{
			"provider": m.provider,
			"model":    labels["model"],
		}
		tokenLabels["token_type"] = "input"
		m.collector.RecordCounter(MetricLLMTokens, float64(resp.TokensIn), tokenLabels)

		tokenLabels = map[string]string{
			"provider":   m.provider,
			"model":      labels["model"],
			"token_type": "output",
		}
		m.collector.RecordCounter(MetricLLMTokens, float64(resp.TokensOut), tokenLabels)

		m.collector.RecordCounter(MetricLLMCitations, float64(len(resp.Citations)), map[string]string{
			"provider": m.provider,
		})
	}

	return resp, err
}

func requestStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ports.ErrTimeout), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
