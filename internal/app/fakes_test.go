package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// fakeConn is an in-memory ports.Conn. Messages pushed into in are
// returned by Read; writes are recorded.
type fakeConn struct {
	in chan ports.Message

	mu       sync.Mutex
	written  []ports.Message
	writeErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan ports.Message, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Read() (ports.Message, error) {
	select {
	case m := <-c.in:
		return m, nil
	case <-c.closed:
		return ports.Message{}, io.EOF
	}
}

func (c *fakeConn) Write(msg ports.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, m := range c.written {
		out[i] = string(m.Data)
	}
	return out
}

func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// fakeTransport hands out fakeConns; the first failDials dials fail.
// Each dial takes dialDelay, like a handshake with a distant service.
type fakeTransport struct {
	mu        sync.Mutex
	dials     int
	failDials int
	dialDelay time.Duration
	conns     chan *fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{conns: make(chan *fakeConn, 16)}
}

func (t *fakeTransport) Dial(ctx context.Context, url string) (ports.Conn, error) {
	t.mu.Lock()
	t.dials++
	fail := t.dials <= t.failDials
	delay := t.dialDelay
	t.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	t.conns <- c
	return c, nil
}

func (t *fakeTransport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *fakeTransport) nextConn(tb testing.TB) *fakeConn {
	tb.Helper()
	select {
	case c := <-t.conns:
		return c
	case <-time.After(2 * time.Second):
		tb.Fatal("no connection dialed")
		return nil
	}
}

// fakeCodec encodes frames as "prompt|seed|steps" text. Inbound payloads
// "malformed", "remote" and "info" map to a malformed frame, a remote
// error and an informational message. "png:<seed>" carries a real PNG,
// "empty" a result without images. Anything else becomes a result whose
// RequestID is the payload.
type fakeCodec struct{}

func (fakeCodec) Encode(f domain.RequestFrame) (ports.Message, error) {
	if f.Prompt == "unencodable" {
		return ports.Message{}, errors.New("cannot encode")
	}
	return ports.Message{Binary: true, Data: []byte(fmt.Sprintf("%s|%d|%s", f.Prompt, f.Seed, f.NumInferenceSteps))}, nil
}

func (fakeCodec) Decode(m ports.Message) (*domain.ResultFrame, error) {
	switch s := string(m.Data); s {
	case "malformed":
		return nil, fmt.Errorf("%w: bad payload", domain.ErrMalformedFrame)
	case "remote":
		return nil, fmt.Errorf("%w: overloaded", domain.ErrRemote)
	case "info":
		return nil, nil
	case "empty":
		return &domain.ResultFrame{RequestID: s, Timings: &domain.Timings{Inference: 0.1}}, nil
	default:
		if seed, ok := strings.CutPrefix(s, "png:"); ok {
			n, _ := strconv.ParseInt(seed, 10, 64)
			return &domain.ResultFrame{
				RequestID: s,
				Seed:      n,
				Images:    []domain.Image{{Content: testPNG()}},
				Timings:   &domain.Timings{Inference: 0.25},
			}, nil
		}
		return &domain.ResultFrame{
			RequestID: s,
			Images:    []domain.Image{{Content: []byte(s)}},
			Timings:   &domain.Timings{Inference: 0.1},
		}, nil
	}
}

// eventLog collects connection callbacks.
type eventLog struct {
	mu      sync.Mutex
	results []domain.ResultFrame
	errs    []error
	states  []ConnState
	sent    []domain.RequestFrame
}

func (l *eventLog) callbacks() Callbacks {
	return Callbacks{
		OnResult: func(r domain.ResultFrame) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.results = append(l.results, r)
		},
		OnError: func(err error) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.errs = append(l.errs, err)
		},
		OnState: func(key string, s ConnState) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.states = append(l.states, s)
		},
		OnTransmit: func(f domain.RequestFrame) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.sent = append(l.sent, f)
		},
	}
}

func (l *eventLog) Results() []domain.ResultFrame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ResultFrame{}, l.results...)
}

func (l *eventLog) Errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error{}, l.errs...)
}

func (l *eventLog) hasError(target error) bool {
	for _, err := range l.Errors() {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (l *eventLog) States() []ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ConnState{}, l.states...)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %s", what)
}

func joined(ss []string) string { return strings.Join(ss, ",") }

// msg builds an inbound binary message.
func msg(payload string) ports.Message {
	return ports.Message{Binary: true, Data: []byte(payload)}
}

// testPNG returns a small valid PNG image.
func testPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// fakeImageStore keeps handles in memory and tracks releases.
type fakeImageStore struct {
	mu       sync.Mutex
	next     int
	live     map[domain.ImageHandle]string
	released []domain.ImageHandle
	putErr   error
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{live: make(map[domain.ImageHandle]string)}
}

func (s *fakeImageStore) Put(content []byte, contentType string) (domain.ImageHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	s.next++
	h := domain.ImageHandle(fmt.Sprintf("img-%d", s.next))
	s.live[h] = contentType
	return h, nil
}

func (s *fakeImageStore) Release(h domain.ImageHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[h]; !ok {
		return fmt.Errorf("unknown handle %s", h)
	}
	delete(s.live, h)
	s.released = append(s.released, h)
	return nil
}

func (s *fakeImageStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *fakeImageStore) Released() []domain.ImageHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ImageHandle{}, s.released...)
}
