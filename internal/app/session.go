package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bft-labs/seedstream/internal/domain"
	"github.com/bft-labs/seedstream/internal/ports"
)

// DefaultInboxSize is the capacity of the session inbox.
const DefaultInboxSize = 64

// SessionConfig configures one realtime session.
type SessionConfig struct {
	ConnectionKey string
	Connection    ConnectionConfig

	InitialPrompt string
	InitialSeed   string

	// Defaults is the request template; its step count is used for
	// interactive frames.
	Defaults     domain.RequestFrame
	QualitySteps string
	FirstFrame   FirstFramePolicy

	RotateInterval time.Duration
	DisableRotator bool
	SeedGenerator  SeedGenerator
}

const (
	sessionNew int32 = iota
	sessionRunning
	sessionDone
)

// Session owns the input and display state of one realtime session. All
// mutations run on the goroutine that called Run; other goroutines post
// to it and read published snapshots. Edits posted before Run are queued
// and applied after the activation frame.
type Session struct {
	cfg      SessionConfig
	registry *Registry
	store    ports.ImageStore
	markers  ports.MarkerRepository
	observer Observer
	logger   ports.Logger

	inbox  chan func()
	closed chan struct{}
	status atomic.Int32

	conn      atomic.Pointer[Connection]
	inputSnap atomic.Pointer[domain.InputState]
	dispSnap  atomic.Pointer[domain.DisplayState]

	// Owned by the session goroutine.
	input    domain.InputState
	syncer   *Synchronizer
	receiver *Receiver
	rotator  *Rotator
}

// NewSession validates cfg and creates a session. markers may be nil.
func NewSession(cfg SessionConfig, registry *Registry, store ports.ImageStore, markers ports.MarkerRepository, observer Observer, logger ports.Logger) (*Session, error) {
	if cfg.ConnectionKey == "" {
		return nil, fmt.Errorf("%w: connection key is required", domain.ErrInvalidConfig)
	}
	if _, err := ParseSeed(cfg.InitialSeed); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = NopObserver{}
	}

	s := &Session{
		cfg:      cfg,
		registry: registry,
		store:    store,
		markers:  markers,
		observer: observer,
		logger:   logger,
		inbox:    make(chan func(), DefaultInboxSize),
		closed:   make(chan struct{}),
		input: domain.InputState{
			Prompt: cfg.InitialPrompt,
			Seed:   domain.SeedState{Value: cfg.InitialSeed, Source: domain.SeedSourceInitial},
		},
		receiver: NewReceiver(store, logger),
	}
	s.rotator = NewRotator(cfg.RotateInterval, cfg.SeedGenerator, s.rotate, logger)
	s.publishInput()
	s.dispSnap.Store(&domain.DisplayState{})
	return s, nil
}

// Run activates the session and processes events until ctx is canceled.
// A session runs at most once.
func (s *Session) Run(ctx context.Context) error {
	if !s.status.CompareAndSwap(sessionNew, sessionRunning) {
		if s.status.Load() == sessionRunning {
			return domain.ErrAlreadyRunning
		}
		return domain.ErrClosed
	}
	defer s.status.Store(sessionDone)

	s.writeMarker(ctx)

	conn, err := s.registry.Open(s.cfg.ConnectionKey, s.cfg.Connection, Callbacks{
		OnResult:   s.onResult,
		OnError:    s.onError,
		OnState:    s.observer.OnConnectionState,
		OnTransmit: s.observer.OnFrameTransmitted,
		Done:       s.closed,
	})
	if err != nil {
		close(s.closed)
		return err
	}
	s.conn.Store(conn)

	s.syncer = NewSynchronizer(s.cfg.Defaults, s.cfg.QualitySteps, s.cfg.FirstFrame, conn, s.logger)
	seed, _ := ParseSeed(s.input.Seed.Value)
	if frame, _, err := s.syncer.Activate(s.input.Prompt, seed); err != nil {
		s.fail(err)
	} else {
		s.observer.OnFrameSubmitted(frame)
	}

	if !s.cfg.DisableRotator {
		s.rotator.Start(ctx)
	}

	s.logger.Info("session started",
		ports.String("key", s.cfg.ConnectionKey),
		ports.String("prompt", s.input.Prompt),
		ports.Int64("seed", seed),
	)

	for {
		select {
		case <-ctx.Done():
			s.teardown(conn)
			return nil
		case fn := <-s.inbox:
			fn()
		}
	}
}

// teardown stops every writer before the connection goes away. Posts made
// after closed is closed are dropped.
func (s *Session) teardown(conn *Connection) {
	s.rotator.Stop()
	close(s.closed)

	if err := conn.Close(); err != nil {
		s.logger.Warn("failed to close connection", ports.Err(err))
	}
	s.receiver.Release()
	disp := s.receiver.Current()
	s.dispSnap.Store(&disp)

	s.logger.Info("session stopped", ports.String("key", s.cfg.ConnectionKey))
}

// Done is closed once the session no longer accepts events.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// SetPrompt replaces the prompt and pushes the new input.
func (s *Session) SetPrompt(prompt string) error {
	return s.post(context.Background(), func() {
		s.input.Prompt = prompt
		s.publishInput()
		s.push()
	})
}

// SetSeed replaces the seed with user text. Text that is not an integer
// is rejected with ErrInvalidSeed and leaves the state unchanged.
func (s *Session) SetSeed(seed string) error {
	if _, err := ParseSeed(seed); err != nil {
		return err
	}
	return s.post(context.Background(), func() {
		s.writeSeed(seed, domain.SeedSourceUser)
	})
}

// Input returns a snapshot of the current input.
func (s *Session) Input() domain.InputState {
	return *s.inputSnap.Load()
}

// Display returns a snapshot of the current display state.
func (s *Session) Display() domain.DisplayState {
	return *s.dispSnap.Load()
}

// Stats returns the connection counters, or zero before Run.
func (s *Session) Stats() ConnectionStats {
	if c := s.conn.Load(); c != nil {
		return c.Stats()
	}
	return ConnectionStats{}
}

// ConnectionState returns the transport state, or Connecting before Run.
func (s *Session) ConnectionState() ConnState {
	if c := s.conn.Load(); c != nil {
		return c.State()
	}
	return ConnConnecting
}

func (s *Session) post(ctx context.Context, fn func()) error {
	if s.status.Load() == sessionDone {
		return domain.ErrClosed
	}
	select {
	case <-s.closed:
		return domain.ErrClosed
	default:
	}
	select {
	case s.inbox <- fn:
		return nil
	case <-s.closed:
		return domain.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rotate is the rotator's emit target.
func (s *Session) rotate(ctx context.Context, seed string) {
	_ = s.post(ctx, func() {
		s.writeSeed(seed, domain.SeedSourceRotator)
	})
}

func (s *Session) onResult(frame domain.ResultFrame) {
	_ = s.post(context.Background(), func() {
		disp, err := s.receiver.OnResult(frame)
		if err != nil {
			s.fail(err)
			return
		}
		s.dispSnap.Store(&disp)
		s.observer.OnDisplay(disp)
	})
}

func (s *Session) onError(err error) {
	_ = s.post(context.Background(), func() {
		s.observer.OnError(err)
	})
}

func (s *Session) writeSeed(value string, source domain.SeedSource) {
	s.input.Seed.Write(value, source)
	s.publishInput()
	s.observer.OnSeedChanged(s.input.Seed)
	s.push()
}

func (s *Session) push() {
	seed, _ := ParseSeed(s.input.Seed.Value)
	frame, err := s.syncer.OnInputChanged(s.input.Prompt, seed)
	if err != nil {
		s.fail(err)
		return
	}
	s.observer.OnFrameSubmitted(frame)
}

func (s *Session) fail(err error) {
	s.logger.Warn("session error", ports.Err(err))
	s.observer.OnError(err)
}

func (s *Session) publishInput() {
	in := s.input
	s.inputSnap.Store(&in)
}

// writeMarker records the first activation. Failures are logged only.
func (s *Session) writeMarker(ctx context.Context) {
	if s.markers == nil {
		return
	}
	marker, err := s.markers.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load session marker", ports.Err(err))
		return
	}
	if marker.Initialized {
		s.logger.Debug("session marker present", ports.String("key", marker.ConnectionKey))
		return
	}
	marker = domain.SessionMarker{
		Initialized:   true,
		InitializedAt: time.Now().UTC(),
		ConnectionKey: s.cfg.ConnectionKey,
	}
	if err := s.markers.Save(ctx, marker); err != nil {
		s.logger.Warn("failed to save session marker", ports.Err(err))
	}
}
