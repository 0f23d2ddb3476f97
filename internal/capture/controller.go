package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alexanderramin/clicktrail/internal/domain"
)

// State is the monitoring lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Transition records one state change.
type Transition struct {
	At     time.Time
	From   State
	To     State
	Reason string
}

// Controller owns the monitoring lifecycle. Clicks are accepted only while
// Running; Stop cancels in-flight events still waiting for stability and seals
// the session only after every in-flight event has finished or been dropped.
type Controller struct {
	store    SessionStore
	recorder *Recorder
	logger   *slog.Logger
	clock    func() time.Time

	mu       sync.Mutex
	state    State
	session  domain.Session
	ctx      context.Context
	cancel   context.CancelFunc
	timeline []Transition

	inflight sync.WaitGroup
}

func NewController(store SessionStore, recorder *Recorder, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		store:    store,
		recorder: recorder,
		logger:   logger,
		clock:    time.Now,
		state:    StateStopped,
	}
}

// Start opens a new session and begins accepting clicks.
func (c *Controller) Start(ctx context.Context) (domain.Session, error) {
	c.mu.Lock()
	if c.state != StateStopped {
		state := c.state
		c.mu.Unlock()
		return domain.Session{}, fmt.Errorf("%w: start while %s", ErrInvalidTransition, state)
	}
	c.transition(StateStarting, "start requested")
	c.mu.Unlock()

	session, err := c.store.StartSession(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.transition(StateStopped, "session start failed")
		return domain.Session{}, fmt.Errorf("starting session: %w", err)
	}
	c.session = session
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.transition(StateRunning, "session "+session.ID)
	c.logger.Info("monitoring started", "session", session.ID)
	return session, nil
}

// HandleClick records one click. The baseline and context are captured before
// returning; the stability wait and the write continue in the background. It
// reports false when the click was ignored because monitoring is not running.
func (c *Controller) HandleClick(click Click) bool {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return false
	}
	ctx, sessionID := c.ctx, c.session.ID
	c.inflight.Add(1)
	c.mu.Unlock()

	pending, err := c.recorder.Begin(ctx, click)
	if err != nil {
		c.inflight.Done()
		return true
	}

	go func() {
		defer c.inflight.Done()
		_, _ = c.recorder.Complete(ctx, sessionID, pending)
	}()
	return true
}

// Stop cancels in-flight stability waits, waits for background work to drain
// and seals the session.
func (c *Controller) Stop(ctx context.Context) (domain.Session, error) {
	c.mu.Lock()
	if c.state != StateRunning {
		state := c.state
		c.mu.Unlock()
		return domain.Session{}, fmt.Errorf("%w: stop while %s", ErrInvalidTransition, state)
	}
	c.transition(StateStopping, "stop requested")
	cancel, sessionID := c.cancel, c.session.ID
	c.mu.Unlock()

	cancel()
	c.inflight.Wait()

	sealed, err := c.store.EndSession(ctx, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.transition(StateStopped, "session "+sessionID+" sealed")
	c.ctx, c.cancel = nil, nil
	if err != nil {
		return domain.Session{}, fmt.Errorf("sealing session %s: %w", sessionID, err)
	}
	c.session = sealed
	c.logger.Info("monitoring stopped", "session", sealed.ID)
	return sealed, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current or most recently sealed session.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Timeline returns a copy of every state transition so far.
func (c *Controller) Timeline() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition(nil), c.timeline...)
}

// transition must be called with c.mu held.
func (c *Controller) transition(to State, reason string) {
	c.timeline = append(c.timeline, Transition{At: c.clock(), From: c.state, To: to, Reason: reason})
	c.logger.Debug("monitoring state", "from", c.state, "to", to, "reason", reason)
	c.state = to
}
