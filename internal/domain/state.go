package domain

import "time"

// SeedSource identifies which writer produced a seed value.
type SeedSource int

const (
	SeedSourceInitial SeedSource = iota
	SeedSourceUser
	SeedSourceRotator
)

// String returns a human-readable representation of the source.
func (s SeedSource) String() string {
	switch s {
	case SeedSourceInitial:
		return "initial"
	case SeedSourceUser:
		return "user"
	case SeedSourceRotator:
		return "rotator"
	default:
		return "unknown"
	}
}

// SeedState holds the current seed text. It has two independent writers,
// the user and the rotator; the last write wins.
type SeedState struct {
	Value   string
	Source  SeedSource
	Version uint64
}

// Write replaces the seed and bumps the version.
func (s *SeedState) Write(value string, source SeedSource) {
	s.Value = value
	s.Source = source
	s.Version++
}

// InputState is the user-editable part of a request.
// Prompt and Seed are written independently of each other.
type InputState struct {
	Prompt string
	Seed   SeedState
}

// ImageHandle references a decoded image that a presentation layer can
// render directly, for example a file:// URI.
type ImageHandle string

// DisplayState is the result currently on display. It is derived and
// replaced wholesale whenever a ResultFrame is accepted.
type DisplayState struct {
	Image       ImageHandle
	ContentType string
	Inference   time.Duration
	Seed        int64

	// Sequence counts accepted results in arrival order, starting at 1.
	Sequence   uint64
	ReceivedAt time.Time
}

// Empty reports whether no result has been displayed yet.
func (d DisplayState) Empty() bool {
	return d.Sequence == 0
}

// SessionMarker records that a session has been initialized.
type SessionMarker struct {
	Initialized   bool      `json:"initialized"`
	InitializedAt time.Time `json:"initialized_at"`
	ConnectionKey string    `json:"connection_key"`
}
