package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/seedstream/internal/ports"
)

// DefaultRotateInterval is the period between generated seeds.
const DefaultRotateInterval = 500 * time.Millisecond

// RotatorState is the state of a Rotator.
type RotatorState int

const (
	RotatorIdle RotatorState = iota
	RotatorRunning
)

// String returns a human-readable representation of the state.
func (s RotatorState) String() string {
	if s == RotatorRunning {
		return "Running"
	}
	return "Idle"
}

// Rotator periodically generates a seed and hands it to emit. emit is
// given the rotator's context and must return promptly once it is done.
type Rotator struct {
	interval time.Duration
	generate SeedGenerator
	emit     func(ctx context.Context, seed string)
	logger   ports.Logger

	mu     sync.Mutex
	state  RotatorState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotator creates an idle rotator. A nil generate uses RandomSeed.
func NewRotator(interval time.Duration, generate SeedGenerator, emit func(context.Context, string), logger ports.Logger) *Rotator {
	if interval <= 0 {
		interval = DefaultRotateInterval
	}
	if generate == nil {
		generate = RandomSeed
	}
	return &Rotator{
		interval: interval,
		generate: generate,
		emit:     emit,
		logger:   logger,
	}
}

// State returns the current state.
func (r *Rotator) State() RotatorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins ticking. It is a no-op while running.
func (r *Rotator) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RotatorRunning {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = RotatorRunning

	go r.loop(ctx, r.done)
	r.logger.Debug("seed rotator started", ports.Duration("interval", r.interval))
}

// Stop cancels the ticker and waits for the loop to exit. No seed is
// emitted after Stop returns. It is a no-op while idle.
func (r *Rotator) Stop() {
	r.mu.Lock()
	if r.state == RotatorIdle {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.state = RotatorIdle
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	cancel()
	<-done
	r.logger.Debug("seed rotator stopped")
}

func (r *Rotator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			r.emit(ctx, r.generate())
		}
	}
}
