package ws

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// Control message types sent by the service as JSON text.
const (
	TypeMessage = "x-fal-message"
	TypeError   = "x-fal-error"
)

type wireRequest struct {
	Prompt              string `msgpack:"prompt"`
	Seed                int64  `msgpack:"seed"`
	NumInferenceSteps   string `msgpack:"num_inference_steps"`
	ImageSize           string `msgpack:"image_size"`
	EnableSafetyChecker bool   `msgpack:"enable_safety_checker"`
	SyncMode            bool   `msgpack:"sync_mode"`
	NumImages           int    `msgpack:"num_images"`

	// ForceMsgpack asks the service to answer in msgpack. Always empty.
	ForceMsgpack []byte `msgpack:"_force_msgpack"`
}

type wireImage struct {
	Content     []byte `msgpack:"content" json:"content"`
	ContentType string `msgpack:"content_type" json:"content_type"`
	URL         string `msgpack:"url" json:"url"`
	Width       int    `msgpack:"width" json:"width"`
	Height      int    `msgpack:"height" json:"height"`
}

type wireTimings struct {
	Inference float64 `msgpack:"inference" json:"inference"`
}

type wireResult struct {
	Type   string `msgpack:"type" json:"type"`
	Error  any    `msgpack:"error" json:"error"`
	Reason string `msgpack:"reason" json:"reason"`

	Images    []wireImage  `msgpack:"images" json:"images"`
	Timings   *wireTimings `msgpack:"timings" json:"timings"`
	Seed      int64        `msgpack:"seed" json:"seed"`
	RequestID string       `msgpack:"request_id" json:"request_id"`
}

// Codec encodes requests as msgpack binary messages and decodes msgpack
// or JSON results.
type Codec struct{}

// NewCodec returns the realtime codec.
func NewCodec() Codec {
	return Codec{}
}

// Encode implements ports.FrameCodec.
func (Codec) Encode(f domain.RequestFrame) (ports.Message, error) {
	data, err := msgpack.Marshal(wireRequest{
		Prompt:              f.Prompt,
		Seed:                f.Seed,
		NumInferenceSteps:   f.NumInferenceSteps,
		ImageSize:           f.ImageSize,
		EnableSafetyChecker: f.EnableSafetyChecker,
		SyncMode:            f.SyncMode,
		NumImages:           f.NumImages,
		ForceMsgpack:        []byte{},
	})
	if err != nil {
		return ports.Message{}, fmt.Errorf("marshal msgpack request: %w", err)
	}
	return ports.Message{Binary: true, Data: data}, nil
}

// Decode implements ports.FrameCodec.
func (Codec) Decode(msg ports.Message) (*domain.ResultFrame, error) {
	var w wireResult
	if msg.Binary {
		if err := msgpack.Unmarshal(msg.Data, &w); err != nil {
			return nil, fmt.Errorf("%w: msgpack: %w", domain.ErrMalformedFrame, err)
		}
	} else {
		if err := json.Unmarshal(msg.Data, &w); err != nil {
			return nil, fmt.Errorf("%w: json: %w", domain.ErrMalformedFrame, err)
		}
	}

	switch w.Type {
	case TypeMessage:
		return nil, nil
	case TypeError:
		return nil, remoteError(w)
	}
	if w.Error != nil && w.Images == nil {
		return nil, remoteError(w)
	}

	frame := &domain.ResultFrame{
		Seed:      w.Seed,
		RequestID: w.RequestID,
	}
	if w.Timings != nil {
		frame.Timings = &domain.Timings{Inference: w.Timings.Inference}
	}
	if len(w.Images) > 0 {
		frame.Images = make([]domain.Image, len(w.Images))
		for i, img := range w.Images {
			frame.Images[i] = domain.Image{
				Content:     img.Content,
				ContentType: img.ContentType,
				URL:         img.URL,
				Width:       img.Width,
				Height:      img.Height,
			}
		}
	}
	return frame, nil
}

func remoteError(w wireResult) error {
	text := "unknown error"
	if w.Error != nil {
		text = fmt.Sprint(w.Error)
	}
	if w.Reason != "" {
		text += ": " + w.Reason
	}
	return fmt.Errorf("%w: %s", domain.ErrRemote, text)
}

var _ ports.FrameCodec = Codec{}
