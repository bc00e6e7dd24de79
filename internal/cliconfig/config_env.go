package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "SEEDSTREAM_"

// ApplyEnvConfig applies configuration from environment variables (SEEDSTREAM_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("endpoint", env("ENDPOINT"), &cfg.Endpoint)
	s.setString("app", env("APP"), &cfg.App)
	s.setString("connection-key", env("CONNECTION_KEY"), &cfg.ConnectionKey)
	s.setString("prompt", env("PROMPT"), &cfg.Prompt)
	s.setString("seed", env("SEED"), &cfg.Seed)
	s.setString("image-size", env("IMAGE_SIZE"), &cfg.ImageSize)
	s.setString("first-frame", env("FIRST_FRAME"), &cfg.FirstFramePolicy)
	s.setString("marker-dir", env("MARKER_DIR"), &cfg.MarkerDir)
	s.setString("output-dir", env("OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("prompt-file", env("PROMPT_FILE"), &cfg.PromptFile)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setStepsFromString("quality-steps", env("QUALITY_STEPS"), &cfg.QualitySteps); err != nil {
		return err
	}
	if err := s.setStepsFromString("interactive-steps", env("INTERACTIVE_STEPS"), &cfg.InteractiveSteps); err != nil {
		return err
	}

	if err := s.setDuration("throttle", env("THROTTLE_INTERVAL"), &cfg.ThrottleInterval); err != nil {
		return err
	}
	if err := s.setDuration("rotate-interval", env("ROTATE_INTERVAL"), &cfg.RotateInterval); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", env("DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", env("BACKOFF_INITIAL"), &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", env("BACKOFF_MAX"), &cfg.BackoffMax); err != nil {
		return err
	}

	s.setBoolFromString("disable-safety-checker", env("DISABLE_SAFETY_CHECKER"), &cfg.DisableSafetyChecker)
	s.setBoolFromString("no-rotate", env("NO_ROTATE"), &cfg.DisableRotator)
	s.setBoolFromString("no-stdin", env("NO_STDIN"), &cfg.NoStdin)

	return nil
}
