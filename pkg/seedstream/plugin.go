package seedstream

import (
	"context"

	"github.com/bft-labs/seedstream/internal/app"
)

// Plugin extends a Client. Plugins are initialized in registration order
// on Start and shut down in reverse order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// Controller is the part of a Client a plugin may drive. The controller
// handed to Initialize is bound to the session being started and may be
// used from Initialize itself; edits made before the session runs are
// applied after its first frame.
type Controller interface {
	SetPrompt(prompt string) error
	SetSeed(seed string) error
	Input() Input
	Display() Display
}

// PluginConfig is passed to Plugin.Initialize.
type PluginConfig struct {
	ConnectionKey string
	URL           string
	Logger        Logger
	Controller    Controller
}

// BasePlugin provides no-op Initialize and Shutdown methods.
type BasePlugin struct{}

func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }

type sessionController struct {
	s *app.Session
}

func (c sessionController) SetPrompt(prompt string) error { return c.s.SetPrompt(prompt) }
func (c sessionController) SetSeed(seed string) error     { return c.s.SetSeed(seed) }
func (c sessionController) Input() Input                  { return c.s.Input() }
func (c sessionController) Display() Display              { return c.s.Display() }
