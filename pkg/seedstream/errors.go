package seedstream

import "github.com/bft-labs/seedstream/internal/domain"

// Errors reported by a Client. Match them with errors.Is.
var (
	ErrConnection      = domain.ErrConnection
	ErrTransmission    = domain.ErrTransmission
	ErrDecoding        = domain.ErrDecoding
	ErrMalformedFrame  = domain.ErrMalformedFrame
	ErrRemote          = domain.ErrRemote
	ErrInvalidSeed     = domain.ErrInvalidSeed
	ErrClosed          = domain.ErrClosed
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)
