package application

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahrav/go-veriai/internal/ports"
)

// Session metrics recorded through ports.MetricsCollector.
const (
	MetricSessionsActive  = "sessions_active"
	MetricSessionsCreated = "sessions_created_total"
	MetricSessionsEvicted = "sessions_evicted_total"
)

// ErrTooManySessions is returned by Create when the session cap is reached.
var ErrTooManySessions = errors.New("too many active sessions")

// SessionManager creates isolated controllers, one per user session, and
// keeps them in a ports.SessionStore. A session that expires or is deleted
// has its controller closed.
type SessionManager struct {
	store       ports.SessionStore
	verifier    ports.Verifier
	logger      *zap.Logger
	metrics     ports.MetricsCollector
	maxSessions int
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionLogger sets the logger handed to the manager and its controllers.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSessionMetrics records session counts to collector.
func WithSessionMetrics(collector ports.MetricsCollector) SessionOption {
	return func(m *SessionManager) { m.metrics = collector }
}

// WithMaxSessions caps live sessions. The cap is exact under concurrent
// Create calls and expired sessions do not count toward it. Zero or
// negative means unlimited.
func WithMaxSessions(n int) SessionOption {
	return func(m *SessionManager) { m.maxSessions = n }
}

// NewSessionManager returns a manager whose controllers verify through
// verifier. It takes over store's eviction callback.
func NewSessionManager(store ports.SessionStore, verifier ports.Verifier, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		store:    store,
		verifier: verifier,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	store.OnEvict(m.evicted)
	return m
}

// Create starts a new idle session and returns its id and controller.
func (m *SessionManager) Create() (string, *Controller, error) {
	id := uuid.NewString()
	ctrl := NewController(m.verifier, WithControllerLogger(m.logger.With(zap.String("session_id", id))))
	if !m.store.PutIfBelow(id, ctrl, m.maxSessions) {
		ctrl.Close()
		return "", nil, ErrTooManySessions
	}

	m.logger.Debug("session created", zap.String("session_id", id))
	m.record(MetricSessionsCreated)
	return id, ctrl, nil
}

// Get returns the controller for id, or ports.ErrSessionNotFound.
func (m *SessionManager) Get(id string) (*Controller, error) {
	v, ok := m.store.Get(id)
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	ctrl, ok := v.(*Controller)
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	return ctrl, nil
}

// Delete ends the session, canceling any verification it is running.
func (m *SessionManager) Delete(id string) error {
	if _, err := m.Get(id); err != nil {
		return err
	}
	m.store.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int { return m.store.Len() }

// evicted may run under the store's lock; only Len is safe to call from it.
func (m *SessionManager) evicted(id string, v any) {
	if ctrl, ok := v.(*Controller); ok {
		ctrl.Close()
	}
	m.logger.Debug("session ended", zap.String("session_id", id))
	m.record(MetricSessionsEvicted)
}

func (m *SessionManager) record(counter string) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordCounter(counter, 1, nil)
	m.metrics.RecordGauge(MetricSessionsActive, float64(m.store.Len()), nil)
}
