package application

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ahrav/go-veriai/internal/domain"
	"github.com/ahrav/go-veriai/internal/ports"
)

// Controller owns one session's InteractionState and drives it through
// domain.Transition. Verifications run in the background; their outcomes are
// applied only while they are still current, so a Clear issued during
// analysis cannot be overwritten by a late result.
//
// A Controller is safe for concurrent use.
type Controller struct {
	verifier ports.Verifier
	logger   *zap.Logger

	// ctx is canceled by Close and bounds every background verification.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    domain.InteractionState
	closed   bool
	inflight int
	// idle is closed whenever inflight is zero.
	idle    chan struct{}
	subs    map[uint64]chan domain.InteractionState
	nextSub uint64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the controller's logger.
func WithControllerLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController returns an idle controller that verifies through verifier.
func NewController(verifier ports.Verifier, opts ...ControllerOption) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		verifier: verifier,
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		state:    domain.NewInteractionState(),
		idle:     idle,
		subs:     make(map[uint64]chan domain.InteractionState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state. The result it references is never
// mutated after publication.
func (c *Controller) Snapshot() domain.InteractionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetInputText replaces the held input. It is accepted in every state,
// including while a verification is running.
func (c *Controller) SetInputText(text string) {
	c.apply(domain.SetInput{Text: text})
}

// Submit starts verifying the held input and returns immediately. It
// reports false, changing nothing, while a verification is running, when
// the input is blank, or after Close.
//
// The verification outlives ctx's cancellation but keeps its values, so
// request-scoped tracing carries over. Close cancels it.
func (c *Controller) Submit(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	next, ok := domain.Transition(c.state, domain.Submit{})
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.state = next
	c.beginLocked()
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Debug("verification started",
		zap.Uint64("generation", next.Generation),
		zap.Int("input_length", len(next.InputText)),
	)

	go c.run(context.WithoutCancel(ctx), next.Generation, next.InputText)
	return true
}

// Clear resets to idle with empty input. Any running verification keeps
// running, but its outcome is discarded.
func (c *Controller) Clear() {
	c.apply(domain.Clear{})
}

// Wait blocks until no verification is running or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel that receives the current state immediately
// and then every subsequent change. Slow readers only see the latest state.
// The returned function unsubscribes; the channel is also closed by Close.
func (c *Controller) Subscribe() (<-chan domain.InteractionState, func()) {
	ch := make(chan domain.InteractionState, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close cancels running verifications and closes every subscription.
// Further Submits are rejected. Close does not block.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// apply runs event through the transition function and publishes the new
// state when it is accepted.
func (c *Controller) apply(event domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := domain.Transition(c.state, event)
	if !ok {
		return false
	}
	c.state = next
	c.publishLocked()
	return true
}

func (c *Controller) run(parent context.Context, generation uint64, text string) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(c.ctx, cancel)
	defer func() {
		stop()
		cancel()
		c.finish()
	}()

	event := c.verify(ctx, generation, text)
	if !c.apply(event) {
		c.logger.Debug("discarded stale verification outcome", zap.Uint64("generation", generation))
		return
	}

	switch ev := event.(type) {
	case domain.Succeeded:
		c.logger.Debug("verification completed",
			zap.Uint64("generation", generation),
			zap.Float64("overall_score", ev.Result.OverallScore),
		)
	case domain.Failed:
		c.logger.Info("verification failed",
			zap.Uint64("generation", generation),
			zap.String("message", ev.Message),
		)
	}
}

// verify converts the verifier outcome into a completion event. A panic in
// the verifier becomes a failure so the session cannot stay analyzing.
func (c *Controller) verify(ctx context.Context, generation uint64, text string) (event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("verifier panicked", zap.String("panic", fmt.Sprint(r)))
			event = domain.Failed{Generation: generation, Message: domain.DefaultErrorMessage}
		}
	}()

	result, err := c.verifier.Verify(ctx, text)
	switch {
	case err != nil:
		return domain.Failed{Generation: generation, Message: domain.ErrorMessage(err)}
	case result == nil:
		return domain.Failed{Generation: generation, Message: domain.DefaultErrorMessage}
	default:
		return domain.Succeeded{Generation: generation, Result: result}
	}
}

func (c *Controller) beginLocked() {
	if c.inflight == 0 {
		c.idle = make(chan struct{})
	}
	c.inflight++
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
	}
}

// publishLocked offers the current state to every subscriber, replacing any
// state the subscriber has not read yet.
func (c *Controller) publishLocked() {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.state
	}
}
