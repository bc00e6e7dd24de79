package promptwatcher

import "github.com/bft-labs/seedstream/pkg/seedstream"

// WithPromptWatcher returns a seedstream Option that drives the prompt
// from a file.
//
// Usage:
//
//	c, err := seedstream.New(cfg,
//	    promptwatcher.WithPromptWatcher(promptwatcher.Config{
//	        Path:          "prompt.txt",
//	        DebounceDelay: 50 * time.Millisecond,
//	    }),
//	)
func WithPromptWatcher(cfg Config) seedstream.Option {
	return seedstream.WithPlugin(New(cfg))
}

// WithDefaultPromptWatcher watches prompt.txt in the working directory.
func WithDefaultPromptWatcher() seedstream.Option {
	return WithPromptWatcher(DefaultConfig())
}
