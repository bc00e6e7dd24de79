package seedstream

import (
	"github.com/bft-labs/seedstream/internal/app"
	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
	"github.com/bft-labs/seedstream/pkg/log"
)

// Re-exported types.
type (
	// Logger is the structured logger interface from pkg/log.
	Logger = log.Logger

	// LogField is a structured log field.
	LogField = log.Field

	// Transport opens the realtime connection.
	Transport = ports.Transport

	// ImageStore holds decoded images behind handles.
	ImageStore = ports.ImageStore

	// ImageHandle references a stored image.
	ImageHandle = domain.ImageHandle

	// Display is the result currently on display.
	Display = domain.DisplayState

	// Input is the current prompt and seed.
	Input = domain.InputState

	// Stats are the connection counters.
	Stats = app.ConnectionStats
)

// Option configures optional behavior of a Client.
type Option func(*options)

type options struct {
	logger       Logger
	eventHandler EventHandler
	transport    Transport
	imageStore   ImageStore
	plugins      []Plugin
	metrics      bool
	cookies      map[string]string
}

func defaultOptions() options {
	return options{
		logger:  log.Discard,
		cookies: map[string]string{"fal-app": "true"},
	}
}

// WithLogger sets the logger. Without it nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = log.OrDiscard(logger)
	}
}

// WithEventHandler sets a handler for client events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithTransport replaces the websocket transport, typically in tests.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithImageStore sets where decoded images are kept. The default keeps
// them in memory; see Client.Image.
func WithImageStore(s ImageStore) Option {
	return func(o *options) {
		o.imageStore = s
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, p)
	}
}

// WithMetrics enables Prometheus metrics; see Client.StatusHandler.
func WithMetrics() Option {
	return func(o *options) {
		o.metrics = true
	}
}

// WithCookie adds a cookie to the websocket handshake.
func WithCookie(name, value string) Option {
	return func(o *options) {
		o.cookies[name] = value
	}
}
