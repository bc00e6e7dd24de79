package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// and YAML friendly.
type FileConfig struct {
	Endpoint             string `toml:"endpoint" yaml:"endpoint"`
	App                  string `toml:"app" yaml:"app"`
	ConnectionKey        string `toml:"connection_key" yaml:"connection_key"`
	Prompt               string `toml:"prompt" yaml:"prompt"`
	Seed                 string `toml:"seed" yaml:"seed"`
	ImageSize            string `toml:"image_size" yaml:"image_size"`
	DisableSafetyChecker *bool  `toml:"disable_safety_checker" yaml:"disable_safety_checker"`
	QualitySteps         int    `toml:"quality_steps" yaml:"quality_steps"`
	InteractiveSteps     int    `toml:"interactive_steps" yaml:"interactive_steps"`
	FirstFramePolicy     string `toml:"first_frame" yaml:"first_frame"`
	ThrottleInterval     string `toml:"throttle_interval" yaml:"throttle_interval"`
	RotateInterval       string `toml:"rotate_interval" yaml:"rotate_interval"`
	DisableRotator       *bool  `toml:"no_rotate" yaml:"no_rotate"`
	DialTimeout          string `toml:"dial_timeout" yaml:"dial_timeout"`
	BackoffInitial       string `toml:"backoff_initial" yaml:"backoff_initial"`
	BackoffMax           string `toml:"backoff_max" yaml:"backoff_max"`
	MarkerDir            string `toml:"marker_dir" yaml:"marker_dir"`
	OutputDir            string `toml:"output_dir" yaml:"output_dir"`
	PromptFile           string `toml:"prompt_file" yaml:"prompt_file"`
	MetricsAddr          string `toml:"metrics_addr" yaml:"metrics_addr"`
	LogLevel             string `toml:"log_level" yaml:"log_level"`
	NoStdin              *bool  `toml:"no_stdin" yaml:"no_stdin"`
}

// LoadFileConfig reads and parses a config file. Files ending in .yaml or
// .yml are YAML; anything else is TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.seedstream/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".seedstream", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("app", fc.App, &cfg.App)
	s.setString("connection-key", fc.ConnectionKey, &cfg.ConnectionKey)
	s.setString("prompt", fc.Prompt, &cfg.Prompt)
	s.setString("seed", fc.Seed, &cfg.Seed)
	s.setString("image-size", fc.ImageSize, &cfg.ImageSize)
	s.setString("first-frame", fc.FirstFramePolicy, &cfg.FirstFramePolicy)
	s.setString("marker-dir", fc.MarkerDir, &cfg.MarkerDir)
	s.setString("output-dir", fc.OutputDir, &cfg.OutputDir)
	s.setString("prompt-file", fc.PromptFile, &cfg.PromptFile)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setSteps("quality-steps", fc.QualitySteps, &cfg.QualitySteps)
	s.setSteps("interactive-steps", fc.InteractiveSteps, &cfg.InteractiveSteps)

	if err := s.setDuration("throttle", fc.ThrottleInterval, &cfg.ThrottleInterval); err != nil {
		return err
	}
	if err := s.setDuration("rotate-interval", fc.RotateInterval, &cfg.RotateInterval); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", fc.BackoffInitial, &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", fc.BackoffMax, &cfg.BackoffMax); err != nil {
		return err
	}

	s.setBool("disable-safety-checker", fc.DisableSafetyChecker, &cfg.DisableSafetyChecker)
	s.setBool("no-rotate", fc.DisableRotator, &cfg.DisableRotator)
	s.setBool("no-stdin", fc.NoStdin, &cfg.NoStdin)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
