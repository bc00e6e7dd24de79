package app

import (
	"sync"
	"time"

	"github.com/bft-labs/seedstream/internal/domain"
)

// DefaultThrottleInterval is the minimum spacing between transmitted frames.
const DefaultThrottleInterval = 64 * time.Millisecond

// throttle coalesces submitted frames. The first submit into an empty
// throttle opens a window of one interval; frames submitted inside the
// window replace the pending one, and when the window closes only the
// latest frame is flushed. A burst of n >= 2 submits inside one window
// therefore produces exactly one flush.
//
// Flushes run one at a time under flushMu. A window that a Bypass retired
// is never flushed, even when its timer already fired.
type throttle struct {
	interval time.Duration
	flush    func(domain.RequestFrame)

	flushMu sync.Mutex

	mu       sync.Mutex
	pending  *domain.RequestFrame
	timer    *time.Timer
	gen      uint64
	bypasses uint64
	closed   bool
	dropped  uint64
}

func newThrottle(interval time.Duration, flush func(domain.RequestFrame)) *throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &throttle{interval: interval, flush: flush}
}

// Submit queues frame for the current window. It reports whether an
// earlier pending frame was replaced.
func (t *throttle) Submit(frame domain.RequestFrame) (replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	if t.pending != nil {
		t.dropped++
		replaced = true
	}
	t.pending = &frame
	if t.timer == nil {
		gen := t.gen
		t.timer = time.AfterFunc(t.interval, func() { t.fire(gen) })
	}
	return replaced
}

// Bypass discards any pending frame and closes the current window. When it
// returns no flush from an earlier window is in progress or still to come,
// so the caller can hand an urgent frame to the writer directly. It
// reports false once the throttle is closed.
func (t *throttle) Bypass() bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	if t.pending != nil {
		t.dropped++
		t.pending = nil
	}
	t.bypasses++
	t.stopTimer()
	t.mu.Unlock()

	// Wait out a flush that started before the window was retired.
	t.flushMu.Lock()
	t.flushMu.Unlock()
	return true
}

func (t *throttle) fire(gen uint64) {
	t.mu.Lock()
	// A Bypass or Close since arming retired this window.
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.gen++
	frame := t.pending
	t.pending = nil
	t.timer = nil
	bypasses := t.bypasses
	t.mu.Unlock()

	if frame == nil {
		return
	}

	t.flushMu.Lock()
	defer t.flushMu.Unlock()
	t.mu.Lock()
	stale := t.closed || t.bypasses != bypasses
	t.mu.Unlock()
	if !stale {
		t.flush(*frame)
	}
}

// Dropped returns how many frames were replaced before transmission.
func (t *throttle) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Close stops the window timer and discards the pending frame.
func (t *throttle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.pending = nil
	t.stopTimer()
}

// stopTimer retires the current window. Callers hold t.mu.
func (t *throttle) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
