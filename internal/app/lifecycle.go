package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// ShutdownTimeout is the maximum time to wait for a session to wind down.
const ShutdownTimeout = 5 * time.Second

// State represents the lifecycle state of a session.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

var stateNames = map[State]string{
	StateStopped:  "Stopped",
	StateStarting: "Starting",
	StateRunning:  "Running",
	StateStopping: "Stopping",
	StateCrashed:  "Crashed",
}

// String returns a human-readable representation of the state.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle guards the session state machine and tracks its goroutines.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  ports.Logger
	emitter EventEmitter
}

// NewLifecycle creates a lifecycle in StateStopped.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{state: StateStopped, logger: logger, emitter: emitter}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to newState if the transition is allowed.
// Leaving a stopped or crashed state any other way than Starting yields
// ErrNotRunning; every other rejected transition yields ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	old := l.state
	if !allowed(old, newState) {
		l.mu.Unlock()
		if old == StateStopped || old == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = newState
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.OnStateChange(old, newState, reason)
	}
	l.logger.Info("state transition",
		ports.String("from", old.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)
	return nil
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanStart reports whether the session can be started.
func (l *Lifecycle) CanStart() bool {
	s := l.State()
	return s == StateStopped || s == StateCrashed
}

// CanStop reports whether the session can be stopped.
func (l *Lifecycle) CanStop() bool {
	s := l.State()
	return s == StateRunning || s == StateStarting
}

// SetCancel stores the function that ends the session's context.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel ends the session's context, if one was set.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Go runs fn on a tracked goroutine.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// WaitWithTimeout waits for tracked goroutines, giving up after timeout.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		l.logger.Warn("shutdown timeout, abandoning session goroutines",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
