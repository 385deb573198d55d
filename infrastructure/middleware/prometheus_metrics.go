// Package middleware provides cross-cutting concerns for the verification
// service.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-veriai/infrastructure/llm"
	"github.com/ahrav/go-veriai/infrastructure/verification"
	"github.com/ahrav/go-veriai/internal/ports"
)

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

const metricsNamespace = "veriai"

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. Known metric names map onto dedicated vectors; anything else
// falls through to the generic operation vectors.
type PrometheusMetrics struct {
	llmLatency   *prometheus.HistogramVec
	llmRequests  *prometheus.CounterVec
	llmTokens    *prometheus.CounterVec
	llmCitations *prometheus.CounterVec

	verifications *prometheus.CounterVec
	verifyLatency *prometheus.HistogramVec
	claims        *prometheus.CounterVec
	sources       prometheus.Histogram
	overallScore  prometheus.Histogram

	breakerState    prometheus.Gauge
	breakerTrips    prometheus.Counter
	breakerRequests *prometheus.CounterVec

	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	histograms       *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collector and registers its metrics with
// reg. A nil reg uses the default Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PrometheusMetrics{
		// LLM client metrics.
		llmLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Latency of requests to the LLM provider.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "llm_requests_total",
				Help:      "Requests sent to the LLM provider, by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "llm_tokens_total",
				Help:      "Tokens consumed by LLM requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		llmCitations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "llm_citations_total",
				Help:      "Grounding citations returned by the LLM provider.",
			},
			[]string{"provider"},
		),

		// Verification metrics.
		verifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "verifications_total",
				Help:      "Verification requests, by outcome.",
			},
			[]string{"status"},
		),
		verifyLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "verification_duration_seconds",
				Help:      "End-to-end latency of verification requests.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"status"},
		),
		claims: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "claims_total",
				Help:      "Claims returned by verifications, by verdict.",
			},
			[]string{"status"},
		),
		sources: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "verification_sources",
			Help:      "Grounding sources per successful verification.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		overallScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "verification_overall_score",
			Help:      "Overall reliability score of successful verifications.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),

		// Circuit breaker metrics.
		breakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "llm_circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),
		breakerTrips: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "llm_circuit_breaker_trips_total",
			Help:      "Times the circuit breaker opened.",
		}),
		breakerRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "llm_circuit_breaker_requests_total",
				Help:      "Requests observed by the circuit breaker, by result.",
			},
			[]string{"result"},
		),

		// General metrics for names without a dedicated vector.
		operationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "operation_duration_seconds",
				Help:      "Execution time of miscellaneous operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		operationCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "Miscellaneous operation counts.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "system_state",
				Help:      "Current values of system state gauges such as live sessions.",
			},
			[]string{"metric"},
		),
		histograms: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "observations",
				Help:      "Miscellaneous observed values.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	status := labelOr(labels, "status", "unknown")
	switch operation {
	case verification.MetricVerifyLatency:
		pm.verifyLatency.WithLabelValues(status).Observe(duration.Seconds())
	case llm.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			status,
		).Observe(duration.Seconds())
	default:
		pm.operationLatency.WithLabelValues(operation, status).Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	if value < 0 {
		return
	}

	switch metric {
	case llm.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "unknown"),
		).Add(value)
	case llm.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "token_type", "unknown"),
		).Add(value)
	case llm.MetricLLMCitations:
		pm.llmCitations.WithLabelValues(labelOr(labels, "provider", "unknown")).Add(value)
	case verification.MetricVerifications:
		pm.verifications.WithLabelValues(labelOr(labels, "status", "unknown")).Add(value)
	case verification.MetricClaims:
		pm.claims.WithLabelValues(labelOr(labels, "status", "unknown")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "status", "success")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case llm.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "unknown"),
		).Observe(value)
	case verification.MetricSources:
		pm.sources.Observe(value)
	case verification.MetricReliabilityScore:
		pm.overallScore.Observe(value)
	default:
		pm.histograms.WithLabelValues(metric).Observe(value)
	}
}

// CircuitBreaker returns a view of the collector that records circuit
// breaker transitions.
func (pm *PrometheusMetrics) CircuitBreaker() llm.CircuitBreakerMetrics {
	return breakerMetrics{pm}
}

type breakerMetrics struct{ pm *PrometheusMetrics }

func (b breakerMetrics) RecordState(state llm.CircuitBreakerState) {
	b.pm.breakerState.Set(float64(state))
}

func (b breakerMetrics) RecordTrip()    { b.pm.breakerTrips.Inc() }
func (b breakerMetrics) RecordSuccess() { b.pm.breakerRequests.WithLabelValues("success").Inc() }
func (b breakerMetrics) RecordFailure() { b.pm.breakerRequests.WithLabelValues("failure").Inc() }

func labelOr(labels map[string]string, key, def string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return def
}
