package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-veriai/infrastructure/llm"
	"github.com/ahrav/go-veriai/infrastructure/middleware"
	"github.com/ahrav/go-veriai/infrastructure/verification"
	"github.com/ahrav/go-veriai/internal/ports"
)

// buildLLMClient assembles the configured provider behind the middleware
// chain, outermost first: tracing, metrics, circuit breaker, retry, rate
// limit, timeout. Stages whose settings are zero are left out.
func buildLLMClient(a *app, metrics ports.MetricsCollector) (ports.LLMClient, error) {
	cfg := a.cfg.LLM
	provider, err := a.cfg.ProviderConfig()
	if err != nil {
		return nil, err
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		key, envVar := provider.APIKeyFromEnv()
		if key == "" {
			return nil, ports.NewConfigError("llm.api_key",
				fmt.Errorf("%w: set VERIAI_LLM_API_KEY or one of %v", ports.ErrConfigNotFound, provider.EnvVars))
		}
		a.logger.Debug("using API key from environment", zap.String("env", envVar))
		apiKey = key
	}

	chain := []llm.Middleware{llm.TracingMiddleware("veriai")}
	if metrics != nil {
		chain = append(chain, llm.MetricsMiddleware(metrics, cfg.Provider))
	}
	if cfg.BreakerMaxFailures > 0 {
		var cbMetrics llm.CircuitBreakerMetrics
		if pm, ok := metrics.(*middleware.PrometheusMetrics); ok {
			cbMetrics = pm.CircuitBreaker()
		}
		chain = append(chain, llm.CircuitBreakerMiddlewareWithMetrics(cfg.BreakerMaxFailures, cfg.BreakerCooldown, cbMetrics))
	}
	if cfg.MaxRetries > 0 {
		chain = append(chain, llm.RetryMiddleware(cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryMaxDelay))
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		chain = append(chain, llm.RateLimitMiddleware(rate.Limit(cfg.RateLimit), burst))
	}
	if cfg.Timeout > 0 {
		chain = append(chain, llm.TimeoutMiddleware(cfg.Timeout))
	}

	client, err := llm.NewClient(provider.Type, llm.ClientConfig{
		APIKey:     apiKey,
		Model:      provider.ModelOrDefault(cfg.Model),
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		Middleware: chain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}
	return client, nil
}

// buildVerifier creates the verifier with metrics optional.
func (a *app) buildVerifier(metrics ports.MetricsCollector) (*verification.Verifier, error) {
	if a.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	client, err := a.newClient(a, metrics)
	if err != nil {
		return nil, err
	}

	opts := []verification.Option{verification.WithLogger(a.logger)}
	if metrics != nil {
		opts = append(opts, verification.WithMetrics(metrics))
	}
	return verification.NewVerifier(client, a.cfg.Verification, opts...)
}
