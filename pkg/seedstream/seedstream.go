package seedstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/seedstream/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/seedstream/internal/adapters/http"
	"github.com/bft-labs/seedstream/internal/adapters/memory"
	"github.com/bft-labs/seedstream/internal/adapters/metrics"
	"github.com/bft-labs/seedstream/internal/adapters/ws"
	"github.com/bft-labs/seedstream/internal/app"
	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// Client is a realtime image session that can be embedded in other
// applications. Use New to create one, then Start.
type Client struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	registry  *app.Registry
	store     ports.ImageStore
	memStore  *memory.ImageStore
	markers   ports.MarkerRepository
	observer  app.Observer
	recorder  *metrics.Recorder
	logger    ports.Logger
	plugins   []Plugin

	mu      sync.RWMutex
	session *app.Session
	cancel  context.CancelFunc
}

// New creates a Client in StateStopped.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	bridge := &eventBridge{handler: o.eventHandler}

	transport := o.transport
	if transport == nil {
		names := make([]string, 0, len(o.cookies))
		for name := range o.cookies {
			names = append(names, name)
		}
		sort.Strings(names)
		wsOpts := make([]ws.Option, 0, len(names))
		for _, name := range names {
			wsOpts = append(wsOpts, ws.WithCookie(name, o.cookies[name]))
		}
		transport = ws.NewTransport(wsOpts...)
	}

	c := &Client{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, bridge),
		registry:  app.NewRegistry(transport, ws.NewCodec(), logger),
		logger:    logger,
		plugins:   o.plugins,
	}

	c.store = o.imageStore
	if c.store == nil {
		c.memStore = memory.NewImageStore()
		c.store = c.memStore
	}
	if cfg.MarkerDir != "" {
		c.markers = fs.NewMarkerFileRepository(cfg.MarkerDir)
	}

	observers := app.Observers{bridge}
	if o.metrics {
		c.recorder = metrics.NewRecorder()
		observers = append(observers, c.recorder)
	}
	c.observer = observers

	return c, nil
}

// Start opens the connection and begins the session in the background.
// The context bounds the session's lifetime.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	session, err := app.NewSession(c.config.sessionConfig(), c.registry, c.store, c.markers, c.observer, c.logger)
	if err != nil {
		_ = c.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.session = session
	c.cancel = cancel
	c.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		ConnectionKey: c.config.ConnectionKey,
		URL:           c.config.URL(),
		Logger:        c.logger,
		Controller:    sessionController{session},
	}
	for _, p := range c.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			c.session = nil
			_ = c.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		c.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	c.lifecycle.Go(func() {
		if err := c.lifecycle.TransitionTo(app.StateRunning, "session starting"); err != nil {
			c.logger.Error("failed to transition to running", ports.Err(err))
			return
		}
		if err := session.Run(runCtx); err != nil {
			c.logger.Error("session error", ports.Err(err))
			_ = c.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})
	return nil
}

// Stop ends the session, releases the connection and shuts plugins down.
// It returns ErrShutdownTimeout if the session did not stop in time.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.lifecycle.CanStop() {
		c.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	err := c.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	shutdownCtx := context.Background()
	for i := len(c.plugins) - 1; i >= 0; i-- {
		p := c.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			c.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(shutdownErr))
		} else {
			c.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}

	if err != nil {
		_ = c.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = c.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Close stops the client if needed and tears down every connection.
func (c *Client) Close() error {
	var err error
	if c.lifecycle.CanStop() {
		err = c.Stop()
	}
	if cerr := c.registry.Close(); err == nil {
		err = cerr
	}
	return err
}

// Status returns the lifecycle state.
func (c *Client) Status() State {
	return convertState(c.lifecycle.State())
}

func (c *Client) current() (*app.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, domain.ErrNotRunning
	}
	return c.session, nil
}

// SetPrompt replaces the prompt.
func (c *Client) SetPrompt(prompt string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	return s.SetPrompt(prompt)
}

// SetSeed replaces the seed with user text. Non-integer text returns
// ErrInvalidSeed; empty text means 0.
func (c *Client) SetSeed(seed string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	return s.SetSeed(seed)
}

// Input returns the current prompt and seed. Before the first Start it
// reports the configured values.
func (c *Client) Input() Input {
	if s, err := c.current(); err == nil {
		return s.Input()
	}
	return Input{
		Prompt: c.config.Prompt,
		Seed:   domain.SeedState{Value: c.config.Seed, Source: domain.SeedSourceInitial},
	}
}

// Display returns the result currently on display.
func (c *Client) Display() Display {
	if s, err := c.current(); err == nil {
		return s.Display()
	}
	return Display{}
}

// Image returns the bytes behind a handle issued by the default in-memory
// store. It reports false for other stores and released handles.
func (c *Client) Image(h ImageHandle) (content []byte, contentType string, ok bool) {
	if c.memStore == nil {
		return nil, "", false
	}
	img, ok := c.memStore.Get(h)
	return img.Content, img.ContentType, ok
}

// Stats returns the connection counters of the current session.
func (c *Client) Stats() Stats {
	if s, err := c.current(); err == nil {
		return s.Stats()
	}
	return Stats{}
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// StatusReport is the document served on /status.
type StatusReport struct {
	State      string  `json:"state"`
	Connection string  `json:"connection"`
	URL        string  `json:"url"`
	Prompt     string  `json:"prompt"`
	Seed       string  `json:"seed"`
	SeedSource string  `json:"seed_source"`
	Sequence   uint64  `json:"sequence"`
	Image      string  `json:"image,omitempty"`
	Inference  float64 `json:"inference_seconds"`
	Stats      Stats   `json:"stats"`
}

// Report builds a StatusReport.
func (c *Client) Report() StatusReport {
	in := c.Input()
	d := c.Display()
	conn := "Closed"
	if s, err := c.current(); err == nil {
		conn = s.ConnectionState().String()
	}
	return StatusReport{
		State:      c.Status().String(),
		Connection: conn,
		URL:        c.config.URL(),
		Prompt:     in.Prompt,
		Seed:       in.Seed.Value,
		SeedSource: in.Seed.Source.String(),
		Sequence:   d.Sequence,
		Image:      string(d.Image),
		Inference:  d.Inference.Seconds(),
		Stats:      c.Stats(),
	}
}

// Healthy returns nil while the client is running and connected.
func (c *Client) Healthy() error {
	if st := c.Status(); st != StateRunning {
		return fmt.Errorf("client is %s", st)
	}
	s, err := c.current()
	if err != nil {
		return err
	}
	if st := s.ConnectionState(); st != app.ConnConnected {
		return errors.New("connection is " + st.String())
	}
	return nil
}

// StatusHandler serves /healthz, /status and, with WithMetrics, /metrics.
func (c *Client) StatusHandler() http.Handler {
	var mh http.Handler
	if c.recorder != nil {
		mh = c.recorder.Handler()
	}
	return httpAdapter.NewRouter(mh,
		func() any { return c.Report() },
		c.Healthy,
	)
}

// WaitDisplay blocks until the display sequence reaches seq or ctx ends.
func (c *Client) WaitDisplay(ctx context.Context, seq uint64) (Display, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if d := c.Display(); d.Sequence >= seq {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return c.Display(), ctx.Err()
		case <-ticker.C:
		}
	}
}

var _ Controller = (*Client)(nil)
