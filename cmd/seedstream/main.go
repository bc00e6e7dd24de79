package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/seedstream/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/seedstream/internal/adapters/http"
	logAdapter "github.com/bft-labs/seedstream/internal/adapters/log"
	"github.com/bft-labs/seedstream/internal/cliconfig"
	"github.com/bft-labs/seedstream/pkg/seedstream"
	"github.com/bft-labs/seedstream/plugins/promptwatcher"
)

const helpDescription = `
Keep a realtime image model in sync with a prompt and a seed.

Type a line to change the prompt. "/seed N" sets the seed, "/status" prints
the current state. While idle the seed rotates on its own unless --no-rotate
is given.

Configuration comes from a TOML or YAML file, SEEDSTREAM_* environment
variables and flags, in increasing order of precedence.
`

var exampleUsage = strings.TrimSpace(`
  seedstream --prompt "a red fox in the snow"
  seedstream --config ~/.seedstream/config.yaml --output-dir ./frames --metrics-addr :9090
  seedstream --prompt-file prompt.txt --no-rotate --no-stdin
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := logAdapter.NewConsoleLogger(os.Stderr, "info")

	root := &cobra.Command{
		Use:     "seedstream",
		Short:   "Stream prompt and seed edits to a realtime image model",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file; flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log = logAdapter.NewConsoleLogger(os.Stderr, cfg.LogLevel)
			log.Info().Interface("config", cfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file, .toml or .yaml (default: $HOME/.seedstream/config.toml)")

	f.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "websocket base URL of the service")
	f.StringVar(&cfg.App, "app", cfg.App, "application path on the service")
	f.StringVar(&cfg.ConnectionKey, "connection-key", cfg.ConnectionKey, "key of the shared connection")

	f.StringVar(&cfg.Prompt, "prompt", cfg.Prompt, "initial prompt")
	f.StringVar(&cfg.Seed, "seed", cfg.Seed, "initial seed (default: random)")
	f.StringVar(&cfg.ImageSize, "image-size", cfg.ImageSize, "requested image size")
	f.BoolVar(&cfg.DisableSafetyChecker, "disable-safety-checker", cfg.DisableSafetyChecker, "ask the service to skip its safety checker")
	f.StringVar(&cfg.QualitySteps, "quality-steps", cfg.QualitySteps, "inference steps of the first frame")
	f.StringVar(&cfg.InteractiveSteps, "interactive-steps", cfg.InteractiveSteps, "inference steps of later frames")
	f.StringVar(&cfg.FirstFramePolicy, "first-frame", cfg.FirstFramePolicy, "when to send a quality frame: once or every-change")

	f.DurationVar(&cfg.ThrottleInterval, "throttle", cfg.ThrottleInterval, "minimum interval between frames")
	f.DurationVar(&cfg.RotateInterval, "rotate-interval", cfg.RotateInterval, "seed rotation interval")
	f.BoolVar(&cfg.DisableRotator, "no-rotate", cfg.DisableRotator, "do not rotate the seed")
	f.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "timeout of one connection attempt")
	f.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "first reconnect delay")
	f.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "maximum reconnect delay")

	f.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "write the current image into this directory")
	f.StringVar(&cfg.MarkerDir, "marker-dir", cfg.MarkerDir, "directory of the session marker (defaults to output-dir)")
	f.StringVar(&cfg.PromptFile, "prompt-file", cfg.PromptFile, "follow the prompt in this file")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics, /healthz and /status on this address")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error or disabled")
	f.BoolVar(&cfg.NoStdin, "no-stdin", cfg.NoStdin, "do not read edits from stdin")

	if err := f.MarkHidden("connection-key"); err != nil {
		log.Info().Err(err).Msg("failed to hide connection-key flag")
	}

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("seedstream")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, log zerolog.Logger) error {
	opts := []seedstream.Option{
		seedstream.WithLogger(logAdapter.NewZerologAdapterWithLogger(log)),
		seedstream.WithEventHandler(&logHandler{log: log}),
	}
	if cfg.OutputDir != "" {
		store, err := fs.NewImageStore(cfg.OutputDir)
		if err != nil {
			return fmt.Errorf("open output dir: %w", err)
		}
		opts = append(opts, seedstream.WithImageStore(store))
	}
	if cfg.PromptFile != "" {
		opts = append(opts, promptwatcher.WithPromptWatcher(promptwatcher.Config{Path: cfg.PromptFile}))
	}
	if cfg.MetricsAddr != "" {
		opts = append(opts, seedstream.WithMetrics())
	}

	client, err := seedstream.New(cfg.Library(), opts...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	var server *httpAdapter.Server
	if cfg.MetricsAddr != "" {
		server = httpAdapter.NewServer(cfg.MetricsAddr, client.StatusHandler(), logAdapter.NewZerologAdapterWithLogger(log))
		addr, err := server.Start()
		if err != nil {
			_ = client.Stop()
			return fmt.Errorf("start status server: %w", err)
		}
		log.Info().Str("addr", addr).Msg("status server listening")
	}

	if !cfg.NoStdin {
		go readCommands(ctx, os.Stdin, os.Stdout, client, log)
	}

	<-ctx.Done()
	log.Info().Msg("stopping...")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("status server shutdown")
		}
	}
	if err := client.Stop(); err != nil {
		return fmt.Errorf("stop client: %w", err)
	}
	return nil
}
