package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/seedstream/pkg/seedstream"
)

// Config holds CLI configuration for seedstream.
type Config struct {
	Endpoint      string
	App           string
	ConnectionKey string

	Prompt               string
	Seed                 string
	ImageSize            string
	DisableSafetyChecker bool
	QualitySteps         string
	InteractiveSteps     string
	FirstFramePolicy     string

	ThrottleInterval time.Duration
	RotateInterval   time.Duration
	DisableRotator   bool
	DialTimeout      time.Duration
	BackoffInitial   time.Duration
	BackoffMax       time.Duration

	MarkerDir   string
	OutputDir   string
	PromptFile  string
	MetricsAddr string
	LogLevel    string
	NoStdin     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Endpoint:         seedstream.DefaultEndpoint,
		App:              seedstream.DefaultApp,
		ConnectionKey:    seedstream.DefaultConnectionKey,
		Prompt:           seedstream.DefaultPrompt,
		ImageSize:        seedstream.DefaultImageSize,
		QualitySteps:     seedstream.DefaultQualitySteps,
		InteractiveSteps: seedstream.DefaultInteractiveSteps,
		FirstFramePolicy: seedstream.FirstFrameOnce,
		ThrottleInterval: seedstream.DefaultThrottleInterval,
		RotateInterval:   seedstream.DefaultRotateInterval,
		DialTimeout:      seedstream.DefaultDialTimeout,
		BackoffInitial:   seedstream.DefaultBackoffInitial,
		BackoffMax:       seedstream.DefaultBackoffMax,
		LogLevel:         "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	c.App = strings.Trim(c.App, "/")

	if c.OutputDir != "" && c.MarkerDir == "" {
		c.MarkerDir = c.OutputDir
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	lib := c.Library()
	lib.SetDefaults()
	return lib.Validate()
}

// Library converts the CLI configuration to the library configuration.
func (c *Config) Library() seedstream.Config {
	return seedstream.Config{
		Endpoint:             c.Endpoint,
		App:                  c.App,
		ConnectionKey:        c.ConnectionKey,
		Prompt:               c.Prompt,
		Seed:                 c.Seed,
		ImageSize:            c.ImageSize,
		DisableSafetyChecker: c.DisableSafetyChecker,
		QualitySteps:         c.QualitySteps,
		InteractiveSteps:     c.InteractiveSteps,
		FirstFramePolicy:     c.FirstFramePolicy,
		ThrottleInterval:     c.ThrottleInterval,
		RotateInterval:       c.RotateInterval,
		DisableRotator:       c.DisableRotator,
		DialTimeout:          c.DialTimeout,
		BackoffInitial:       c.BackoffInitial,
		BackoffMax:           c.BackoffMax,
		MarkerDir:            c.MarkerDir,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setSteps sets a step count if positive and flag not changed.
// Step counts are strings on the wire.
func (s *configSetter) setSteps(flag string, value int, dst *string) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = strconv.Itoa(value)
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setStepsFromString validates a step count from the environment.
func (s *configSetter) setStepsFromString(flag, value string, dst *string) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = strconv.Itoa(i)
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
