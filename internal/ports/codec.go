package ports

import "github.com/bft-labs/seedstream/internal/domain"

// FrameCodec converts between domain frames and wire messages.
type FrameCodec interface {
	// Encode serialises a request frame.
	Encode(frame domain.RequestFrame) (Message, error)

	// Decode parses an inbound message. It returns (nil, nil) for
	// informational messages that carry no result. Service-reported errors
	// wrap domain.ErrRemote; unparseable input wraps domain.ErrMalformedFrame.
	Decode(msg Message) (*domain.ResultFrame, error)
}
