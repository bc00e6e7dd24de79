package seedstream_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/seedstream/pkg/seedstream"
)

// fakeService emulates the realtime endpoint: every binary request is
// answered with a msgpack result carrying a PNG and the request's seed.
type fakeService struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []map[string]any
	paths    []string
	headers  []http.Header
	reply    func(req map[string]any) (int, []byte)
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.headers = append(f.headers, r.Header.Clone())
		f.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			var req map[string]any
			if err := msgpack.Unmarshal(data, &req); err != nil {
				return
			}
			f.mu.Lock()
			f.requests = append(f.requests, req)
			reply := f.reply
			f.mu.Unlock()

			rt, out := f.defaultReply(req)
			if reply != nil {
				rt, out = reply(req)
			}
			if err := c.WriteMessage(rt, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) defaultReply(req map[string]any) (int, []byte) {
	out, _ := msgpack.Marshal(map[string]any{
		"images":     []map[string]any{{"content": pngBytes(), "content_type": "image/png"}},
		"timings":    map[string]any{"inference": 0.05},
		"seed":       req["seed"],
		"request_id": "r",
	})
	return websocket.BinaryMessage, out
}

func (f *fakeService) endpoint() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeService) Requests() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any{}, f.requests...)
}

func (f *fakeService) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.paths...)
}

func (f *fakeService) Headers() []http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.Header{}, f.headers...)
}

func pngBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func testConfig(endpoint string) seedstream.Config {
	return seedstream.Config{
		Endpoint:         endpoint,
		App:              "fal-ai/fast-lightning-sdxl",
		Prompt:           "P",
		Seed:             "123",
		ThrottleInterval: 20 * time.Millisecond,
		DisableRotator:   true,
		BackoffInitial:   10 * time.Millisecond,
		BackoffMax:       50 * time.Millisecond,
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClient_EndToEnd(t *testing.T) {
	svc := newFakeService(t)
	client, err := seedstream.New(testConfig(svc.endpoint()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	d, err := client.WaitDisplay(ctx, 1)
	if err != nil {
		t.Fatalf("WaitDisplay() error = %v", err)
	}
	if d.Seed != 123 || d.ContentType != "image/png" {
		t.Errorf("display = %+v", d)
	}
	content, ct, ok := client.Image(d.Image)
	if !ok || ct != "image/png" || !bytes.Equal(content, pngBytes()) {
		t.Errorf("Image(%q) = %d bytes, %q, %v", d.Image, len(content), ct, ok)
	}

	first := svc.Requests()[0]
	if first["prompt"] != "P" || first["num_inference_steps"] != "4" {
		t.Errorf("first request = %v", first)
	}
	if p := svc.Paths()[0]; p != "/fal-ai/fast-lightning-sdxl/realtime" {
		t.Errorf("dialed path = %q", p)
	}

	if err := client.SetPrompt("Q"); err != nil {
		t.Fatalf("SetPrompt() error = %v", err)
	}
	d, err = client.WaitDisplay(ctx, 2)
	if err != nil {
		t.Fatalf("WaitDisplay(2) error = %v", err)
	}
	reqs := svc.Requests()
	last := reqs[len(reqs)-1]
	if last["prompt"] != "Q" || last["num_inference_steps"] != "2" {
		t.Errorf("edit request = %v", last)
	}
	if _, _, ok := client.Image(d.Image); !ok {
		t.Error("current image not retrievable")
	}

	if err := client.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if client.Status() != seedstream.StateStopped {
		t.Errorf("Status() = %v, want Stopped", client.Status())
	}
	if _, _, ok := client.Image(d.Image); ok {
		t.Error("image still stored after Stop")
	}
}

func TestClient_HandshakeHeaders(t *testing.T) {
	svc := newFakeService(t)
	client, err := seedstream.New(testConfig(svc.endpoint()), seedstream.WithCookie("session", "abc"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := client.WaitDisplay(ctx, 1); err != nil {
		t.Fatalf("WaitDisplay() error = %v", err)
	}

	h := svc.Headers()[0]
	cookies := strings.Join(h.Values("Cookie"), "; ")
	for _, want := range []string{"fal-app=true", "session=abc"} {
		if !strings.Contains(cookies, want) {
			t.Errorf("Cookie = %q, want %s", cookies, want)
		}
	}
}

func TestClient_RemoteErrorKeepsDisplay(t *testing.T) {
	svc := newFakeService(t)
	handler := &recordingHandler{}
	client, err := seedstream.New(testConfig(svc.endpoint()), seedstream.WithEventHandler(handler))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Start(ctx)
	prior, err := client.WaitDisplay(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	svc.mu.Lock()
	svc.reply = func(map[string]any) (int, []byte) {
		return websocket.TextMessage, []byte(`{"type":"x-fal-error","error":"BUSY","reason":"queue full"}`)
	}
	svc.mu.Unlock()

	_ = client.SetSeed("9")
	waitUntil(t, "remote error event", func() bool { return handler.hasError(seedstream.ErrRemote) })

	if got := client.Display(); got != prior {
		t.Errorf("Display() = %+v, want %+v", got, prior)
	}
	if in := client.Input(); in.Seed.Value != "9" {
		t.Errorf("Input().Seed = %+v", in.Seed)
	}
}

func TestClient_InvalidSeed(t *testing.T) {
	svc := newFakeService(t)
	client, err := seedstream.New(testConfig(svc.endpoint()))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.SetSeed("1"); !errors.Is(err, seedstream.ErrNotRunning) {
		t.Errorf("SetSeed before Start error = %v, want ErrNotRunning", err)
	}

	_ = client.Start(context.Background())
	if err := client.SetSeed("one"); !errors.Is(err, seedstream.ErrInvalidSeed) {
		t.Errorf("SetSeed(one) error = %v, want ErrInvalidSeed", err)
	}
	if in := client.Input(); in.Seed.Value != "123" {
		t.Errorf("seed changed to %q", in.Seed.Value)
	}
}

func TestClient_StartStopErrors(t *testing.T) {
	svc := newFakeService(t)
	client, err := seedstream.New(testConfig(svc.endpoint()))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Stop(); !errors.Is(err, seedstream.ErrNotRunning) {
		t.Errorf("Stop before Start error = %v, want ErrNotRunning", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := client.Start(context.Background()); !errors.Is(err, seedstream.ErrAlreadyRunning) {
		t.Errorf("second Start error = %v, want ErrAlreadyRunning", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// A stopped client can start a fresh session.
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestClient_StatusHandler(t *testing.T) {
	svc := newFakeService(t)
	client, err := seedstream.New(testConfig(svc.endpoint()), seedstream.WithMetrics())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Start(ctx)
	if _, err := client.WaitDisplay(ctx, 1); err != nil {
		t.Fatal(err)
	}

	h := client.StatusHandler()
	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	waitUntil(t, "healthy", func() bool { return get("/healthz").Code == http.StatusOK })

	if body := get("/status").Body.String(); !strings.Contains(body, `"state":"Running"`) || !strings.Contains(body, `"sequence":1`) {
		t.Errorf("/status = %s", body)
	}
	if body := get("/metrics").Body.String(); !strings.Contains(body, "seedstream_frames_displayed_total 1") {
		t.Errorf("/metrics missing displayed counter")
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     seedstream.Config
		wantErr bool
	}{
		{name: "defaults", cfg: seedstream.Config{}},
		{name: "bad scheme", cfg: seedstream.Config{Endpoint: "https://fal.run"}, wantErr: true},
		{name: "bad seed", cfg: seedstream.Config{Seed: "x"}, wantErr: true},
		{name: "bad size", cfg: seedstream.Config{ImageSize: "huge"}, wantErr: true},
		{name: "bad steps", cfg: seedstream.Config{QualitySteps: "0"}, wantErr: true},
		{name: "bad policy", cfg: seedstream.Config{FirstFramePolicy: "never"}, wantErr: true},
		{name: "bad backoff", cfg: seedstream.Config{BackoffInitial: time.Second, BackoffMax: time.Millisecond}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.SetDefaults()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, seedstream.ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}

	cfg := seedstream.Config{}
	cfg.SetDefaults()
	if got := cfg.URL(); got != "wss://fal.run/fal-ai/fast-lightning-sdxl/realtime" {
		t.Errorf("URL() = %q", got)
	}
	if cfg.ConnectionKey != "lightning-sdxl" || cfg.ThrottleInterval != 64*time.Millisecond {
		t.Errorf("defaults = %+v", cfg)
	}
}

type recordingHandler struct {
	seedstream.BaseEventHandler

	mu     sync.Mutex
	errs   []error
	states []seedstream.StateChangeEvent
}

func (h *recordingHandler) OnError(e seedstream.ErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, e.Error)
}

func (h *recordingHandler) OnStateChange(e seedstream.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e)
}

func (h *recordingHandler) hasError(target error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, err := range h.errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
