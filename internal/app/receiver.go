package app

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// DefaultContentType is assumed when a result carries no usable type.
const DefaultContentType = "image/jpeg"

// Receiver validates inbound results and turns the accepted ones into
// DisplayState. It is not safe for concurrent use; the session goroutine
// owns it.
type Receiver struct {
	store  ports.ImageStore
	logger ports.Logger
	now    func() time.Time

	current domain.DisplayState
	seq     uint64
}

// NewReceiver creates a receiver backed by store.
func NewReceiver(store ports.ImageStore, logger ports.Logger) *Receiver {
	return &Receiver{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Current returns the display state of the last accepted result.
func (r *Receiver) Current() domain.DisplayState {
	return r.current
}

// OnResult validates frame and, if it holds a displayable image, replaces
// the display state. On error the previous display state is kept.
func (r *Receiver) OnResult(frame domain.ResultFrame) (domain.DisplayState, error) {
	if frame.Timings == nil {
		return r.current, fmt.Errorf("%w: missing timings", domain.ErrMalformedFrame)
	}
	if len(frame.Images) == 0 {
		return r.current, fmt.Errorf("%w: result has no images", domain.ErrDecoding)
	}

	img := frame.Images[0]
	if len(img.Content) == 0 {
		return r.current, fmt.Errorf("%w: image content is empty", domain.ErrDecoding)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(img.Content)); err != nil {
		return r.current, fmt.Errorf("%w: %w", domain.ErrDecoding, err)
	}

	contentType := resolveContentType(img)
	handle, err := r.store.Put(img.Content, contentType)
	if err != nil {
		return r.current, fmt.Errorf("%w: store image: %w", domain.ErrDecoding, err)
	}

	prev := r.current
	r.seq++
	r.current = domain.DisplayState{
		Image:       handle,
		ContentType: contentType,
		Inference:   time.Duration(frame.Timings.Inference * float64(time.Second)),
		Seed:        frame.Seed,
		Sequence:    r.seq,
		ReceivedAt:  r.now(),
	}

	r.logger.Debug("frame accepted",
		ports.Uint64("sequence", r.seq),
		ports.Int64("seed", frame.Seed),
		ports.String("request_id", frame.RequestID),
		ports.Duration("inference", r.current.Inference),
	)

	if prev.Image != "" {
		if err := r.store.Release(prev.Image); err != nil {
			r.logger.Warn("failed to release image", ports.String("handle", string(prev.Image)), ports.Err(err))
		}
	}
	return r.current, nil
}

// Release frees the current image handle. The display state keeps its
// other fields.
func (r *Receiver) Release() {
	if r.current.Image == "" {
		return
	}
	if err := r.store.Release(r.current.Image); err != nil {
		r.logger.Warn("failed to release image", ports.String("handle", string(r.current.Image)), ports.Err(err))
	}
	r.current.Image = ""
}

func resolveContentType(img domain.Image) string {
	if strings.HasPrefix(img.ContentType, "image/") {
		return img.ContentType
	}
	if sniffed := http.DetectContentType(img.Content); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return DefaultContentType
}
