package llm

import (
	"sync"
	"time"
)

type contextKey string

const testContextKey contextKey = "test-key"

// mockMetricsCollector records metrics keyed by "name:provider".
type mockMetricsCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string]float64
	gauges     map[string]float64
	labels     map[string][]map[string]string
}

func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		counters:   make(map[string]float64),
		histograms: make(map[string]float64),
		gauges:     make(map[string]float64),
		labels:     make(map[string][]map[string]string),
	}
}

func metricKey(metric string, labels map[string]string) string {
	if p, ok := labels["provider"]; ok {
		return metric + ":" + p
	}
	return metric
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.RecordHistogram(operation, duration.Seconds(), labels)
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metricKey(metric, labels)] += value
	m.labels[metric] = append(m.labels[metric], copyLabels(labels))
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metricKey(metric, labels)] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metricKey(metric, labels)] += value
	m.labels[metric] = append(m.labels[metric], copyLabels(labels))
}

func (m *mockMetricsCollector) labelsFor(metric string) []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]string(nil), m.labels[metric]...)
}

// mockCircuitBreakerMetrics counts circuit breaker events.
type mockCircuitBreakerMetrics struct {
	mu        sync.Mutex
	states    []CircuitBreakerState
	trips     int
	successes int
	failures  int
}

func newMockCircuitBreakerMetrics() *mockCircuitBreakerMetrics {
	return &mockCircuitBreakerMetrics{}
}

func (m *mockCircuitBreakerMetrics) RecordState(state CircuitBreakerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *mockCircuitBreakerMetrics) RecordTrip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips++
}

func (m *mockCircuitBreakerMetrics) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *mockCircuitBreakerMetrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}
