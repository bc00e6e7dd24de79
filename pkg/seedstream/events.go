package seedstream

import (
	"github.com/bft-labs/seedstream/internal/app"
	"github.com/bft-labs/seedstream/internal/domain"
)

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ConnectionEvent is emitted when the transport state changes.
type ConnectionEvent struct {
	Key   string
	State string
}

// FrameSentEvent is emitted when a request frame is written to the socket.
type FrameSentEvent struct {
	Prompt string
	Seed   int64
	Steps  string
}

// DisplayEvent is emitted when a result replaces the display state.
type DisplayEvent struct {
	Display Display
}

// ErrorEvent is emitted for every reported error. Errors are never fatal.
type ErrorEvent struct {
	Error error
}

// EventHandler receives client events. Methods are called from internal
// goroutines and must return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnConnection(event ConnectionEvent)
	OnFrameSent(event FrameSentEvent)
	OnDisplay(event DisplayEvent)
	OnError(event ErrorEvent)
}

// BaseEventHandler provides no-op implementations of every method.
// Embed it to handle only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnConnection(ConnectionEvent)   {}
func (BaseEventHandler) OnFrameSent(FrameSentEvent)     {}
func (BaseEventHandler) OnDisplay(DisplayEvent)         {}
func (BaseEventHandler) OnError(ErrorEvent)             {}

// eventBridge adapts an EventHandler to the internal emitter and observer.
type eventBridge struct {
	app.NopObserver
	handler EventHandler
}

func (e *eventBridge) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventBridge) OnConnectionState(key string, state app.ConnState) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnection(ConnectionEvent{Key: key, State: state.String()})
}

func (e *eventBridge) OnFrameTransmitted(f domain.RequestFrame) {
	if e.handler == nil {
		return
	}
	e.handler.OnFrameSent(FrameSentEvent{Prompt: f.Prompt, Seed: f.Seed, Steps: f.NumInferenceSteps})
}

func (e *eventBridge) OnDisplay(d domain.DisplayState) {
	if e.handler == nil {
		return
	}
	e.handler.OnDisplay(DisplayEvent{Display: d})
}

func (e *eventBridge) OnError(err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnError(ErrorEvent{Error: err})
}

var (
	_ app.EventEmitter = (*eventBridge)(nil)
	_ app.Observer     = (*eventBridge)(nil)
)
