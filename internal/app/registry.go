package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// Registry owns every live Connection, keyed by connection key. At most
// one Connection per key exists at a time.
type Registry struct {
	transport ports.Transport
	codec     ports.FrameCodec
	logger    ports.Logger

	mu    sync.Mutex
	conns map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry(transport ports.Transport, codec ports.FrameCodec, logger ports.Logger) *Registry {
	return &Registry{
		transport: transport,
		codec:     codec,
		logger:    logger,
		conns:     make(map[string]*Connection),
	}
}

// Open returns the Connection for key, starting it if needed. Repeated
// calls with the same key return the same handle and add a reference.
// The cfg of later calls is ignored, but every call's cb receives events
// until its Done channel closes. Each successful Open must be paired with
// a Close on the returned handle.
func (r *Registry) Open(key string, cfg ConnectionConfig, cb Callbacks) (*Connection, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: connection key is required", domain.ErrInvalidConfig)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: connection url is required", domain.ErrInvalidConfig)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[key]; ok {
		c.refs++
		c.subscribe(cb)
		r.logger.Debug("reusing connection", ports.String("key", key), ports.Int("refs", c.refs))
		return c, nil
	}

	c := newConnection(key, cfg, cb, r)
	c.refs = 1
	r.conns[key] = c
	go c.run()

	r.logger.Info("opened connection",
		ports.String("key", key),
		ports.Duration("throttle", c.throttle.interval),
	)
	return c, nil
}

// Get returns the live connection for key, if any.
func (r *Registry) Get(key string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[key]
	return c, ok
}

// Keys returns the keys of all live connections, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.conns))
	for k := range r.conns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) release(c *Connection) error {
	r.mu.Lock()
	if r.conns[c.key] != c || c.refs == 0 {
		r.mu.Unlock()
		return domain.ErrClosed
	}
	c.refs--
	if c.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.conns, c.key)
	r.mu.Unlock()

	c.shutdown()
	r.logger.Info("closed connection", ports.String("key", c.key))
	return nil
}

// Close tears down every connection regardless of outstanding references.
func (r *Registry) Close() error {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for k, c := range r.conns {
		c.refs = 0
		conns = append(conns, c)
		delete(r.conns, k)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}
	return nil
}
