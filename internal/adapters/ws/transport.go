// Package ws implements the realtime transport over gorilla/websocket and
// the msgpack wire codec used by the service.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bft-labs/seedstream/internal/ports"
)

// Default transport settings.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultReadLimit        = 32 << 20
)

// Transport dials websocket connections.
type Transport struct {
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
	readLimit    int64
}

// Option configures a Transport.
type Option func(*Transport)

// WithHeader adds a header to every handshake request.
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		t.header.Add(key, value)
	}
}

// WithCookie adds a cookie to every handshake request.
func WithCookie(name, value string) Option {
	return WithHeader("Cookie", (&http.Cookie{Name: name, Value: value}).String())
}

// WithWriteTimeout bounds each message write.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.writeTimeout = d
		}
	}
}

// WithReadLimit caps the size of an inbound message.
func WithReadLimit(n int64) Option {
	return func(t *Transport) {
		if n > 0 {
			t.readLimit = n
		}
	}
}

// NewTransport creates a websocket transport.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		header:       make(http.Header),
		writeTimeout: DefaultWriteTimeout,
		readLimit:    DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dial opens a websocket connection to url.
func (t *Transport) Dial(ctx context.Context, url string) (ports.Conn, error) {
	c, resp, err := t.dialer.DialContext(ctx, url, t.header.Clone())
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	c.SetReadLimit(t.readLimit)
	return &conn{ws: c, writeTimeout: t.writeTimeout}, nil
}

type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func (c *conn) Read() (ports.Message, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return ports.Message{}, err
	}
	return ports.Message{Binary: mt == websocket.BinaryMessage, Data: data}, nil
}

func (c *conn) Write(msg ports.Message) error {
	mt := websocket.TextMessage
	if msg.Binary {
		mt = websocket.BinaryMessage
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(mt, msg.Data)
}

// Close sends a close frame and closes the socket. Safe to call from any
// goroutine and more than once.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

var _ ports.Transport = (*Transport)(nil)
