package app

import (
	"sync"

	"github.com/bft-labs/seedstream/internal/domain"
)

// outbox is the mailbox between the connection and the socket writer. It
// has two single slots: an urgent one fed by SendNow and a throttled one
// fed by the throttle. A newer frame overwrites an unconsumed one in the
// same slot. The urgent frame is always taken first, and a throttled
// frame never replaces it.
type outbox struct {
	mu     sync.Mutex
	urgent *domain.RequestFrame
	frame  *domain.RequestFrame
	ready  chan struct{}
}

func newOutbox() *outbox {
	return &outbox{ready: make(chan struct{}, 1)}
}

// Put stores a throttled frame, replacing any unconsumed throttled frame,
// and wakes the writer.
func (o *outbox) Put(frame domain.RequestFrame) (replaced bool) {
	o.mu.Lock()
	replaced = o.frame != nil
	o.frame = &frame
	o.mu.Unlock()
	o.signal()
	return replaced
}

// PutUrgent stores frame in the urgent slot. An unconsumed throttled
// frame predates it and is discarded.
func (o *outbox) PutUrgent(frame domain.RequestFrame) (replaced bool) {
	o.mu.Lock()
	replaced = o.urgent != nil || o.frame != nil
	o.urgent = &frame
	o.frame = nil
	o.mu.Unlock()
	o.signal()
	return replaced
}

// Restore puts back a frame whose write failed. An urgent frame goes
// back unless a newer urgent frame arrived meanwhile; a throttled frame
// goes back only if both slots are empty.
func (o *outbox) Restore(frame domain.RequestFrame, urgent bool) {
	o.mu.Lock()
	switch {
	case urgent && o.urgent == nil:
		o.urgent = &frame
	case !urgent && o.urgent == nil && o.frame == nil:
		o.frame = &frame
	default:
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	o.signal()
}

// Take removes and returns the next frame, urgent first.
func (o *outbox) Take() (frame domain.RequestFrame, urgent, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.urgent != nil:
		frame, urgent = *o.urgent, true
		o.urgent = nil
		if o.frame != nil {
			// The throttled frame still waits.
			o.signal()
		}
	case o.frame != nil:
		frame = *o.frame
		o.frame = nil
	default:
		return domain.RequestFrame{}, false, false
	}
	return frame, urgent, true
}

// Ready is signalled whenever a frame is waiting.
func (o *outbox) Ready() <-chan struct{} {
	return o.ready
}

func (o *outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
