package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-veriai/infrastructure/session"
	"github.com/ahrav/go-veriai/internal/domain"
	"github.com/ahrav/go-veriai/internal/ports"
)

type countingCollector struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

func newCountingCollector() *countingCollector {
	return &countingCollector{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (c *countingCollector) RecordLatency(string, time.Duration, map[string]string) {}
func (c *countingCollector) RecordHistogram(string, float64, map[string]string)     {}

func (c *countingCollector) RecordCounter(metric string, value float64, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[metric] += value
}

func (c *countingCollector) RecordGauge(metric string, value float64, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[metric] = value
}

func (c *countingCollector) counter(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

func (c *countingCollector) gauge(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gauges[name]
}

func TestSessionManager_Lifecycle(t *testing.T) {
	m := NewSessionManager(session.NewMemoryStore(time.Hour, 0), &fakeVerifier{})

	id, ctrl, err := m.Create()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, ctrl, got)

	require.NoError(t, m.Delete(id))
	assert.Zero(t, m.Len())

	_, err = m.Get(id)
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(id), ports.ErrSessionNotFound)

	ctrl.SetInputText("after delete")
	assert.False(t, ctrl.Submit(context.Background()), "deleted session must be closed")
}

func TestSessionManager_UnknownSession(t *testing.T) {
	m := NewSessionManager(session.NewMemoryStore(time.Hour, 0), &fakeVerifier{})
	_, err := m.Get("missing")
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
}

func TestSessionManager_SessionsAreIsolated(t *testing.T) {
	m := NewSessionManager(session.NewMemoryStore(time.Hour, 0), &fakeVerifier{})

	_, a, err := m.Create()
	require.NoError(t, err)
	_, b, err := m.Create()
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	a.SetInputText("only in a")
	require.True(t, a.Submit(context.Background()))
	waitIdle(t, a)

	assert.Equal(t, domain.StatusCompleted, a.Snapshot().Status)
	assert.Equal(t, domain.NewInteractionState(), b.Snapshot())
}

func TestSessionManager_MaxSessions(t *testing.T) {
	m := NewSessionManager(session.NewMemoryStore(time.Hour, 0), &fakeVerifier{}, WithMaxSessions(2))

	id1, _, err := m.Create()
	require.NoError(t, err)
	_, _, err = m.Create()
	require.NoError(t, err)

	_, _, err = m.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)

	require.NoError(t, m.Delete(id1))
	_, _, err = m.Create()
	assert.NoError(t, err)
}

func TestSessionManager_MaxSessionsUnderConcurrentCreate(t *testing.T) {
	m := NewSessionManager(session.NewMemoryStore(time.Hour, 0), &fakeVerifier{}, WithMaxSessions(3))

	var mu sync.Mutex
	created, rejected := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Create()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrTooManySessions)
				rejected++
				return
			}
			created++
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, created)
	assert.Equal(t, 17, rejected)
	assert.Equal(t, 3, m.Len())
}

func TestSessionManager_ExpiredSessionsFreeCapacity(t *testing.T) {
	store := session.NewMemoryStore(20*time.Millisecond, 0)
	m := NewSessionManager(store, &fakeVerifier{}, WithMaxSessions(1))

	_, old, err := m.Create()
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)

	_, _, err = m.Create()
	require.NoError(t, err, "an expired session must not hold the only slot")

	assert.Equal(t, 1, m.Len())
	old.SetInputText("The Eiffel Tower is in Berlin.")
	assert.False(t, old.Submit(context.Background()), "expired controller is closed")
}

func TestSessionManager_ExpiryClosesController(t *testing.T) {
	store := session.NewMemoryStore(20*time.Millisecond, 0)
	metrics := newCountingCollector()
	m := NewSessionManager(store, &fakeVerifier{}, WithSessionMetrics(metrics))

	id, ctrl, err := m.Create()
	require.NoError(t, err)
	updates, _ := ctrl.Subscribe()

	time.Sleep(50 * time.Millisecond)
	store.Sweep()

	_, err = m.Get(id)
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	assert.False(t, ctrl.Submit(context.Background()))
	for range updates {
	}

	assert.Equal(t, 1.0, metrics.counter(MetricSessionsCreated))
	assert.Equal(t, 1.0, metrics.counter(MetricSessionsEvicted))
	assert.Zero(t, metrics.gauge(MetricSessionsActive))
}

func TestSessionManager_Metrics(t *testing.T) {
	metrics := newCountingCollector()
	m := NewSessionManager(session.NewMemoryStore(time.Hour, 0), &fakeVerifier{}, WithSessionMetrics(metrics))

	id, _, err := m.Create()
	require.NoError(t, err)
	_, _, err = m.Create()
	require.NoError(t, err)
	assert.Equal(t, 2.0, metrics.counter(MetricSessionsCreated))
	assert.Equal(t, 2.0, metrics.gauge(MetricSessionsActive))

	require.NoError(t, m.Delete(id))
	assert.Equal(t, 1.0, metrics.counter(MetricSessionsEvicted))
	assert.Equal(t, 1.0, metrics.gauge(MetricSessionsActive))
}
