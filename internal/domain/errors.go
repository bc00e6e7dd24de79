package domain

import "errors"

// Domain errors represent error conditions in the seedstream domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrConnection is reported when a connection could not be established
	// or was dropped.
	ErrConnection = errors.New("seedstream: connection error")

	// ErrTransmission is reported when a frame could not be written.
	ErrTransmission = errors.New("seedstream: transmission error")

	// ErrDecoding is reported when an inbound payload cannot be turned into
	// a displayable image.
	ErrDecoding = errors.New("seedstream: decoding error")

	// ErrMalformedFrame is reported when an inbound frame is missing
	// required fields or cannot be parsed.
	ErrMalformedFrame = errors.New("seedstream: malformed frame")

	// ErrRemote is reported when the service answers with an error message.
	ErrRemote = errors.New("seedstream: remote error")

	// ErrInvalidSeed is returned when seed text is not an integer.
	ErrInvalidSeed = errors.New("seedstream: invalid seed")

	// ErrClosed is returned when using a connection or session after it closed.
	ErrClosed = errors.New("seedstream: closed")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("seedstream: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("seedstream: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("seedstream: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("seedstream: invalid configuration")
)
