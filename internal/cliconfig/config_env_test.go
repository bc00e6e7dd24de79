package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"SEEDSTREAM_ENDPOINT":          "ws://env",
				"SEEDSTREAM_PROMPT":            "env prompt",
				"SEEDSTREAM_SEED":              "99",
				"SEEDSTREAM_THROTTLE_INTERVAL": "10ms",
				"SEEDSTREAM_QUALITY_STEPS":     "8",
				"SEEDSTREAM_NO_ROTATE":         "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Endpoint:         "ws://env",
				Prompt:           "env prompt",
				Seed:             "99",
				ThrottleInterval: 10 * time.Millisecond,
				QualitySteps:     "8",
				DisableRotator:   true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"SEEDSTREAM_PROMPT": "env prompt",
				"SEEDSTREAM_SEED":   "99",
			},
			changed: map[string]bool{"prompt": true},
			initial: Config{Prompt: "flag prompt"},
			expected: Config{
				Prompt: "flag prompt",
				Seed:   "99",
			},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"SEEDSTREAM_ROTATE_INTERVAL": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid steps",
			envVars: map[string]string{
				"SEEDSTREAM_INTERACTIVE_STEPS": "two",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "handles bool '1' as true",
			envVars: map[string]string{
				"SEEDSTREAM_DISABLE_SAFETY_CHECKER": "1",
			},
			changed:  map[string]bool{},
			expected: Config{DisableSafetyChecker: true},
		},
		{
			name: "handles bool 'false' as false",
			envVars: map[string]string{
				"SEEDSTREAM_NO_STDIN": "false",
			},
			changed:  map[string]bool{},
			initial:  Config{NoStdin: true},
			expected: Config{NoStdin: false},
		},
		{
			name: "handles all string and duration fields",
			envVars: map[string]string{
				"SEEDSTREAM_APP":             "fal-ai/other",
				"SEEDSTREAM_CONNECTION_KEY":  "k",
				"SEEDSTREAM_IMAGE_SIZE":      "square",
				"SEEDSTREAM_FIRST_FRAME":     "every-change",
				"SEEDSTREAM_MARKER_DIR":      "/marker",
				"SEEDSTREAM_OUTPUT_DIR":      "/out",
				"SEEDSTREAM_PROMPT_FILE":     "/prompt.txt",
				"SEEDSTREAM_METRICS_ADDR":    ":9090",
				"SEEDSTREAM_LOG_LEVEL":       "debug",
				"SEEDSTREAM_DIAL_TIMEOUT":    "3s",
				"SEEDSTREAM_BACKOFF_INITIAL": "1s",
				"SEEDSTREAM_BACKOFF_MAX":     "1m",
			},
			changed: map[string]bool{},
			expected: Config{
				App:              "fal-ai/other",
				ConnectionKey:    "k",
				ImageSize:        "square",
				FirstFramePolicy: "every-change",
				MarkerDir:        "/marker",
				OutputDir:        "/out",
				PromptFile:       "/prompt.txt",
				MetricsAddr:      ":9090",
				LogLevel:         "debug",
				DialTimeout:      3 * time.Second,
				BackoffInitial:   time.Second,
				BackoffMax:       time.Minute,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v\nwant     %+v", cfg, tt.expected)
			}
		})
	}
}

// Precedence order: flag > env > file.
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	fileConf := FileConfig{
		Prompt:         "file prompt",
		Seed:           "1",
		ImageSize:      "square",
		DisableRotator: &trueVal,
	}

	t.Setenv("SEEDSTREAM_PROMPT", "env prompt")
	t.Setenv("SEEDSTREAM_SEED", "2")
	t.Setenv("SEEDSTREAM_APP", "fal-ai/env")

	changed := map[string]bool{"prompt": true}
	cfg := Config{Prompt: "flag prompt"}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Prompt != "flag prompt" {
		t.Errorf("Prompt = %v, want flag prompt (flag should win)", cfg.Prompt)
	}
	if cfg.Seed != "2" {
		t.Errorf("Seed = %v, want 2 (env should override file)", cfg.Seed)
	}
	if cfg.App != "fal-ai/env" {
		t.Errorf("App = %v, want fal-ai/env (env should set)", cfg.App)
	}
	if cfg.ImageSize != "square" || !cfg.DisableRotator {
		t.Errorf("file values not applied: %+v", cfg)
	}
}
