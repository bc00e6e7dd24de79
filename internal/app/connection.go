package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// DefaultDialTimeout bounds a single connection attempt.
const DefaultDialTimeout = 10 * time.Second

// ConnState is the state of a Connection's transport.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnConnected
	ConnReconnecting
	ConnClosed
)

// String returns a human-readable representation of the state.
func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "Connecting"
	case ConnConnected:
		return "Connected"
	case ConnReconnecting:
		return "Reconnecting"
	case ConnClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionConfig configures one keyed connection.
type ConnectionConfig struct {
	URL              string
	ThrottleInterval time.Duration
	DialTimeout      time.Duration
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
}

// Callbacks receive connection events. OnResult and OnError run on the
// connection's reader or writer goroutines; they must not block for long.
// Once Done is closed the callbacks are no longer invoked.
type Callbacks struct {
	OnResult   func(domain.ResultFrame)
	OnError    func(error)
	OnState    func(key string, state ConnState)
	OnTransmit func(domain.RequestFrame)
	Done       <-chan struct{}
}

func (cb Callbacks) withDefaults() Callbacks {
	if cb.OnResult == nil {
		cb.OnResult = func(domain.ResultFrame) {}
	}
	if cb.OnError == nil {
		cb.OnError = func(error) {}
	}
	if cb.OnState == nil {
		cb.OnState = func(string, ConnState) {}
	}
	if cb.OnTransmit == nil {
		cb.OnTransmit = func(domain.RequestFrame) {}
	}
	return cb
}

func (cb Callbacks) live() bool {
	if cb.Done == nil {
		return true
	}
	select {
	case <-cb.Done:
		return false
	default:
		return true
	}
}

// ConnectionStats is a snapshot of a connection's counters.
type ConnectionStats struct {
	Submitted   uint64
	Coalesced   uint64
	Transmitted uint64
	Received    uint64
	Reconnects  uint64
}

// Connection is the handle for one live push connection. It is created by
// Registry.Open and owned by the registry; callers release it with Close.
type Connection struct {
	key       string
	cfg       ConnectionConfig
	transport ports.Transport
	codec     ports.FrameCodec
	logger    ports.Logger
	registry  *Registry

	subsMu sync.Mutex
	subs   []Callbacks

	throttle *throttle
	outbox   *outbox

	// refs is guarded by registry.mu.
	refs int

	mu    sync.Mutex
	state ConnState

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	submitted   atomic.Uint64
	coalesced   atomic.Uint64
	transmitted atomic.Uint64
	received    atomic.Uint64
	reconnects  atomic.Uint64
}

func newConnection(key string, cfg ConnectionConfig, cb Callbacks, r *Registry) *Connection {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		key:       key,
		cfg:       cfg,
		transport: r.transport,
		codec:     r.codec,
		logger:    r.logger,
		subs:      []Callbacks{cb.withDefaults()},
		registry:  r,
		outbox:    newOutbox(),
		state:     ConnConnecting,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.throttle = newThrottle(cfg.ThrottleInterval, c.enqueue)
	return c
}

// Key returns the connection key.
func (c *Connection) Key() string { return c.key }

// State returns the current transport state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the connection counters.
func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		Submitted:   c.submitted.Load(),
		Coalesced:   c.coalesced.Load(),
		Transmitted: c.transmitted.Load(),
		Received:    c.received.Load(),
		Reconnects:  c.reconnects.Load(),
	}
}

// Send submits frame through the throttle. Frames sent faster than the
// throttle interval are coalesced; the latest one in a window is kept.
func (c *Connection) Send(frame domain.RequestFrame) error {
	if c.ctx.Err() != nil {
		return domain.ErrClosed
	}
	c.submitted.Add(1)
	if c.throttle.Submit(frame) {
		c.coalesced.Add(1)
	}
	return nil
}

// SendNow bypasses the throttle and discards any frame pending in it. The
// frame is written before any frame sent later through Send, even while
// the transport is still dialing.
func (c *Connection) SendNow(frame domain.RequestFrame) error {
	if c.ctx.Err() != nil || !c.throttle.Bypass() {
		return domain.ErrClosed
	}
	c.submitted.Add(1)
	if c.outbox.PutUrgent(frame) {
		c.coalesced.Add(1)
	}
	return nil
}

// Close releases this reference. The transport is torn down when the last
// reference is released.
func (c *Connection) Close() error {
	return c.registry.release(c)
}

// subscribe adds another Open's callbacks.
func (c *Connection) subscribe(cb Callbacks) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs = append(c.subs, cb.withDefaults())
}

// subscribers returns the callbacks still listening and forgets the rest.
func (c *Connection) subscribers() []Callbacks {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	live := c.subs[:0]
	for _, cb := range c.subs {
		if cb.live() {
			live = append(live, cb)
		}
	}
	clear(c.subs[len(live):])
	c.subs = live
	return append([]Callbacks(nil), live...)
}

// enqueue is the throttle's flush target.
func (c *Connection) enqueue(frame domain.RequestFrame) {
	if c.outbox.Put(frame) {
		// Still unsent from an earlier window, typically while reconnecting.
		c.coalesced.Add(1)
	}
}

func (c *Connection) setState(s ConnState) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev == s {
		return
	}
	c.logger.Debug("connection state",
		ports.String("key", c.key),
		ports.String("from", prev.String()),
		ports.String("to", s.String()),
	)
	for _, cb := range c.subscribers() {
		cb.OnState(c.key, s)
	}
}

func (c *Connection) report(err error) {
	c.logger.Warn("connection error", ports.String("key", c.key), ports.Err(err))
	for _, cb := range c.subscribers() {
		cb.OnError(err)
	}
}

// run owns the transport: dial, serve until failure, back off, repeat.
func (c *Connection) run() {
	defer close(c.done)
	defer c.setState(ConnClosed)

	back := newBackoff(c.cfg.BackoffInitial, c.cfg.BackoffMax)
	first := true

	for {
		if !first {
			c.setState(ConnReconnecting)
			c.reconnects.Add(1)
		}
		first = false

		conn, err := c.dial()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.report(fmt.Errorf("%w: dial %s: %w", domain.ErrConnection, c.cfg.URL, err))
			if back.Wait(c.ctx) != nil {
				return
			}
			continue
		}

		back.Reset()
		c.setState(ConnConnected)
		c.logger.Info("connected", ports.String("key", c.key), ports.String("url", c.cfg.URL))

		err = c.serve(conn)
		if c.ctx.Err() != nil {
			return
		}
		if !errors.Is(err, domain.ErrTransmission) {
			err = fmt.Errorf("%w: %w", domain.ErrConnection, err)
		}
		c.report(err)
		if back.Wait(c.ctx) != nil {
			return
		}
	}
}

func (c *Connection) dial() (ports.Conn, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.DialTimeout)
	defer cancel()
	return c.transport.Dial(ctx, c.cfg.URL)
}

// serve pumps the outbox into conn while a reader goroutine delivers
// results. It returns when the connection fails or the handle closes.
func (c *Connection) serve(conn ports.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(conn) }()

	stop := func() {
		_ = conn.Close()
		<-readErr
	}

	for {
		select {
		case <-c.ctx.Done():
			stop()
			return c.ctx.Err()

		case err := <-readErr:
			_ = conn.Close()
			return err

		case <-c.outbox.Ready():
			frame, urgent, ok := c.outbox.Take()
			if !ok {
				continue
			}
			if err := c.write(conn, frame, urgent); err != nil {
				stop()
				return err
			}
		}
	}
}

func (c *Connection) write(conn ports.Conn, frame domain.RequestFrame, urgent bool) error {
	msg, err := c.codec.Encode(frame)
	if err != nil {
		// Not a transport problem; reconnecting would not help.
		c.report(fmt.Errorf("%w: encode: %w", domain.ErrTransmission, err))
		return nil
	}
	if err := conn.Write(msg); err != nil {
		c.outbox.Restore(frame, urgent)
		return fmt.Errorf("%w: %w", domain.ErrTransmission, err)
	}
	c.transmitted.Add(1)
	for _, cb := range c.subscribers() {
		cb.OnTransmit(frame)
	}
	return nil
}

func (c *Connection) readLoop(conn ports.Conn) error {
	for {
		msg, err := conn.Read()
		if err != nil {
			return err
		}
		result, err := c.codec.Decode(msg)
		if err != nil {
			c.report(err)
			continue
		}
		if result == nil {
			continue
		}
		c.received.Add(1)
		for _, cb := range c.subscribers() {
			cb.OnResult(*result)
		}
	}
}

// shutdown stops the throttle and the transport loop and waits for it.
func (c *Connection) shutdown() {
	c.throttle.Close()
	c.cancel()
	<-c.done
}
