// Package promptwatcher drives a seedstream session from a text file.
// Whenever the file changes its content becomes the prompt. A line of the
// form "seed: N" sets the seed instead.
package promptwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/seedstream/pkg/log"
	"github.com/bft-labs/seedstream/pkg/seedstream"
)

// seedPrefix marks a seed line in the watched file.
const seedPrefix = "seed:"

// Plugin watches a prompt file.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration

	logger     seedstream.Logger
	controller seedstream.Controller
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	debounce   *time.Timer

	lastPrompt string
	lastSeed   string
}

// Config holds configuration options for the prompt watcher.
type Config struct {
	// Path is the watched file.
	Path string

	// DebounceDelay is the delay after the last change before the file is
	// read. Editors often write a file in several steps.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config watching prompt.txt.
func DefaultConfig() Config {
	return Config{
		Path:          "prompt.txt",
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a prompt watcher.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "promptwatcher"
}

// Initialize applies the current file content and starts watching.
func (p *Plugin) Initialize(ctx context.Context, cfg seedstream.PluginConfig) error {
	p.mu.Lock()
	p.logger = log.OrDiscard(cfg.Logger)
	p.controller = cfg.Controller
	p.lastPrompt, p.lastSeed = "", ""
	p.mu.Unlock()

	if p.path == "" || p.controller == nil {
		p.logger.Warn("prompt watcher disabled: no path or controller")
		return nil
	}

	abs, err := filepath.Abs(p.path)
	if err != nil {
		return err
	}
	p.path = abs

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.apply()

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("prompt watcher started", log.String("path", p.path))
	return nil
}

// Shutdown stops watching.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceApply(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("prompt watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceApply(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.apply()
	})
}

// apply reads the file and forwards whatever changed since the last read.
func (p *Plugin) apply() {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("failed to read prompt file", log.String("path", p.path), log.Err(err))
		}
		return
	}

	prompt, seed, hasSeed := parse(string(data))

	p.mu.Lock()
	defer p.mu.Unlock()

	if hasSeed && seed != p.lastSeed {
		if err := p.controller.SetSeed(seed); err != nil {
			p.logger.Warn("prompt file seed rejected", log.String("seed", seed), log.Err(err))
		} else {
			p.lastSeed = seed
		}
	}
	if prompt != "" && prompt != p.lastPrompt {
		if err := p.controller.SetPrompt(prompt); err != nil {
			p.logger.Warn("failed to set prompt", log.Err(err))
			return
		}
		p.lastPrompt = prompt
		p.logger.Debug("prompt updated from file", log.Int("length", len(prompt)))
	}
}

// parse splits file content into the prompt and an optional seed line.
func parse(content string) (prompt, seed string, hasSeed bool) {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(trimmed, seedPrefix); ok {
			seed, hasSeed = strings.TrimSpace(v), true
			continue
		}
		lines = append(lines, strings.TrimRight(line, "\r"))
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), seed, hasSeed
}

var _ seedstream.Plugin = (*Plugin)(nil)
