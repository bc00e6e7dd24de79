package seedstream

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/seedstream/internal/app"
	"github.com/bft-labs/seedstream/internal/domain"
)

// Defaults matching the realtime lightning SDXL playground.
const (
	DefaultEndpoint      = "wss://fal.run"
	DefaultApp           = "fal-ai/fast-lightning-sdxl"
	DefaultConnectionKey = "lightning-sdxl"
	DefaultPrompt        = "neuronal hyper-object white 3D  alive floating rotating tendrils blood biolumiscense transparent white background "
	DefaultImageSize     = domain.ImageSizeSquareHD

	DefaultQualitySteps     = app.DefaultQualitySteps
	DefaultInteractiveSteps = app.DefaultInteractiveSteps
	DefaultThrottleInterval = app.DefaultThrottleInterval
	DefaultRotateInterval   = app.DefaultRotateInterval
	DefaultDialTimeout      = app.DefaultDialTimeout
	DefaultBackoffInitial   = app.DefaultBackoffInitial
	DefaultBackoffMax       = app.DefaultBackoffMax
)

// First frame policies.
const (
	FirstFrameOnce        = "once"
	FirstFrameEveryChange = "every-change"
)

// Config holds the settings of a Client.
type Config struct {
	// Endpoint is the websocket base URL of the service.
	Endpoint string

	// App is the application path appended to Endpoint.
	App string

	// ConnectionKey identifies the shared connection. Clients in one
	// process with the same key share a socket.
	ConnectionKey string

	// Prompt is the initial prompt.
	Prompt string

	// Seed is the initial seed text. Empty picks a random seed.
	Seed string

	ImageSize            string
	DisableSafetyChecker bool

	// QualitySteps is the step count of the activation frame;
	// InteractiveSteps the step count of later edits.
	QualitySteps     string
	InteractiveSteps string

	// FirstFramePolicy is "once" or "every-change".
	FirstFramePolicy string

	ThrottleInterval time.Duration
	RotateInterval   time.Duration
	DisableRotator   bool

	DialTimeout    time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// MarkerDir holds the session marker file. Empty disables it.
	MarkerDir string
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.App == "" {
		c.App = DefaultApp
	}
	if c.ConnectionKey == "" {
		c.ConnectionKey = DefaultConnectionKey
	}
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.Seed == "" {
		c.Seed = app.RandomSeed()
	}
	if c.ImageSize == "" {
		c.ImageSize = DefaultImageSize
	}
	if c.QualitySteps == "" {
		c.QualitySteps = DefaultQualitySteps
	}
	if c.InteractiveSteps == "" {
		c.InteractiveSteps = DefaultInteractiveSteps
	}
	if c.FirstFramePolicy == "" {
		c.FirstFramePolicy = FirstFrameOnce
	}
	if c.ThrottleInterval <= 0 {
		c.ThrottleInterval = DefaultThrottleInterval
	}
	if c.RotateInterval <= 0 {
		c.RotateInterval = DefaultRotateInterval
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
}

// Validate checks the configuration. Call SetDefaults first.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint: %w", domain.ErrInvalidConfig, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: endpoint scheme must be ws or wss, got %q", domain.ErrInvalidConfig, u.Scheme)
	}
	if strings.Trim(c.App, "/") == "" {
		return fmt.Errorf("%w: app is required", domain.ErrInvalidConfig)
	}
	if _, err := app.ParseSeed(c.Seed); err != nil {
		return fmt.Errorf("%w: seed: %w", domain.ErrInvalidConfig, err)
	}
	if !domain.ValidImageSize(c.ImageSize) {
		return fmt.Errorf("%w: unknown image size %q", domain.ErrInvalidConfig, c.ImageSize)
	}
	for name, steps := range map[string]string{"quality": c.QualitySteps, "interactive": c.InteractiveSteps} {
		if n, err := strconv.Atoi(steps); err != nil || n <= 0 {
			return fmt.Errorf("%w: %s steps must be a positive integer, got %q", domain.ErrInvalidConfig, name, steps)
		}
	}
	if _, err := app.ParseFirstFramePolicy(c.FirstFramePolicy); err != nil {
		return err
	}
	if c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("%w: backoff max %s is below initial %s", domain.ErrInvalidConfig, c.BackoffMax, c.BackoffInitial)
	}
	return nil
}

// URL returns the realtime websocket URL: {Endpoint}/{App}/realtime.
func (c *Config) URL() string {
	return strings.TrimRight(c.Endpoint, "/") + "/" + strings.Trim(c.App, "/") + "/realtime"
}

func (c *Config) sessionConfig() app.SessionConfig {
	policy, _ := app.ParseFirstFramePolicy(c.FirstFramePolicy)

	defaults := app.DefaultRequest()
	defaults.ImageSize = c.ImageSize
	defaults.EnableSafetyChecker = !c.DisableSafetyChecker
	defaults.NumInferenceSteps = c.InteractiveSteps

	return app.SessionConfig{
		ConnectionKey: c.ConnectionKey,
		Connection: app.ConnectionConfig{
			URL:              c.URL(),
			ThrottleInterval: c.ThrottleInterval,
			DialTimeout:      c.DialTimeout,
			BackoffInitial:   c.BackoffInitial,
			BackoffMax:       c.BackoffMax,
		},
		InitialPrompt:  c.Prompt,
		InitialSeed:    c.Seed,
		Defaults:       defaults,
		QualitySteps:   c.QualitySteps,
		FirstFrame:     policy,
		RotateInterval: c.RotateInterval,
		DisableRotator: c.DisableRotator,
	}
}
