package app

import (
	"fmt"

	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// Step counts of the lightning SDXL playground.
const (
	DefaultQualitySteps     = "4"
	DefaultInteractiveSteps = "2"
)

// FirstFramePolicy controls when the higher-quality step count is used.
type FirstFramePolicy int

const (
	// FirstFrameOnce uses the quality step count for the activation frame
	// only; every later edit uses the interactive step count.
	FirstFrameOnce FirstFramePolicy = iota

	// FirstFrameEveryChange uses the quality step count for every frame.
	FirstFrameEveryChange
)

// String returns the configuration name of the policy.
func (p FirstFramePolicy) String() string {
	switch p {
	case FirstFrameOnce:
		return "once"
	case FirstFrameEveryChange:
		return "every-change"
	default:
		return "unknown"
	}
}

// ParseFirstFramePolicy parses "once" or "every-change".
func ParseFirstFramePolicy(s string) (FirstFramePolicy, error) {
	switch s {
	case "", "once":
		return FirstFrameOnce, nil
	case "every-change":
		return FirstFrameEveryChange, nil
	}
	return FirstFrameOnce, fmt.Errorf("%w: unknown first frame policy %q", domain.ErrInvalidConfig, s)
}

// DefaultRequest returns the fixed request defaults: safety checker on,
// square_hd, sync mode, one image, interactive step count.
func DefaultRequest() domain.RequestFrame {
	return domain.RequestFrame{
		NumInferenceSteps:   DefaultInteractiveSteps,
		ImageSize:           domain.ImageSizeSquareHD,
		EnableSafetyChecker: true,
		SyncMode:            true,
		NumImages:           1,
	}
}

// FrameSender is the part of Connection the synchronizer needs.
type FrameSender interface {
	Send(frame domain.RequestFrame) error
	SendNow(frame domain.RequestFrame) error
}

// Synchronizer merges the editable input with the request defaults and
// forwards the result to the connection.
type Synchronizer struct {
	defaults     domain.RequestFrame
	qualitySteps string
	policy       FirstFramePolicy
	sender       FrameSender
	logger       ports.Logger

	activated bool
}

// NewSynchronizer creates a synchronizer. defaults.NumInferenceSteps is
// the interactive step count.
func NewSynchronizer(defaults domain.RequestFrame, qualitySteps string, policy FirstFramePolicy, sender FrameSender, logger ports.Logger) *Synchronizer {
	if qualitySteps == "" {
		qualitySteps = DefaultQualitySteps
	}
	return &Synchronizer{
		defaults:     defaults,
		qualitySteps: qualitySteps,
		policy:       policy,
		sender:       sender,
		logger:       logger,
	}
}

// Activate sends the quality frame that opens a session and returns it.
// Later calls send nothing and return ok false.
func (s *Synchronizer) Activate(prompt string, seed int64) (frame domain.RequestFrame, ok bool, err error) {
	if s.activated {
		return frame, false, nil
	}
	s.activated = true

	frame = s.defaults.WithInput(prompt, seed).WithSteps(s.qualitySteps)
	s.logger.Debug("sending quality frame",
		ports.Int64("seed", seed),
		ports.String("steps", frame.NumInferenceSteps),
	)
	return frame, true, s.sender.SendNow(frame)
}

// Activated reports whether the quality frame has been sent.
func (s *Synchronizer) Activated() bool {
	return s.activated
}

// OnInputChanged pushes the current input through the throttle and
// returns the submitted frame.
func (s *Synchronizer) OnInputChanged(prompt string, seed int64) (domain.RequestFrame, error) {
	frame := s.defaults.WithInput(prompt, seed)
	if s.policy == FirstFrameEveryChange {
		frame = frame.WithSteps(s.qualitySteps)
	}
	return frame, s.sender.Send(frame)
}
