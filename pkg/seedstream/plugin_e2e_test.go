package seedstream_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bft-labs/seedstream/pkg/seedstream"
)

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	name      string
	order     *[]string
	orderMu   *sync.Mutex
	initError error

	mu  sync.Mutex
	cfg seedstream.PluginConfig
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg seedstream.PluginConfig) error {
	if p.initError != nil {
		return p.initError
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()

	p.orderMu.Lock()
	defer p.orderMu.Unlock()
	*p.order = append(*p.order, "init:"+p.name)
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.orderMu.Lock()
	defer p.orderMu.Unlock()
	*p.order = append(*p.order, "shutdown:"+p.name)
	return nil
}

// promptingPlugin edits the prompt through its controller from Initialize.
type promptingPlugin struct {
	seedstream.BasePlugin
	prompt string
	err    chan error
}

func (p *promptingPlugin) Name() string { return "prompting" }

func (p *promptingPlugin) Initialize(ctx context.Context, cfg seedstream.PluginConfig) error {
	p.err <- cfg.Controller.SetPrompt(p.prompt)
	return nil
}

func TestPlugins_Order(t *testing.T) {
	svc := newFakeService(t)

	var order []string
	var mu sync.Mutex
	a := &trackingPlugin{name: "a", order: &order, orderMu: &mu}
	b := &trackingPlugin{name: "b", order: &order, orderMu: &mu}

	client, err := seedstream.New(testConfig(svc.endpoint()),
		seedstream.WithPlugin(a),
		seedstream.WithPlugin(b),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	want := []string{"init:a", "init:b", "shutdown:b", "shutdown:a"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.Controller == nil || a.cfg.Logger == nil || a.cfg.ConnectionKey != "lightning-sdxl" {
		t.Errorf("plugin config = %+v", a.cfg)
	}
}

func TestPlugins_InitFailureCrashes(t *testing.T) {
	svc := newFakeService(t)

	var order []string
	var mu sync.Mutex
	bad := &trackingPlugin{name: "bad", order: &order, orderMu: &mu, initError: errors.New("boom")}
	handler := &recordingHandler{}

	client, err := seedstream.New(testConfig(svc.endpoint()),
		seedstream.WithPlugin(bad),
		seedstream.WithEventHandler(handler),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Start(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("Start() error = %v, want boom", err)
	}
	if client.Status() != seedstream.StateCrashed {
		t.Errorf("Status() = %v, want Crashed", client.Status())
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	last := handler.states[len(handler.states)-1]
	if last.Current != seedstream.StateCrashed || last.Reason != "plugin init failed: bad" {
		t.Errorf("last state change = %+v", last)
	}
}

func TestPlugins_ControllerDrivesSession(t *testing.T) {
	svc := newFakeService(t)
	p := &promptingPlugin{prompt: "from plugin", err: make(chan error, 1)}

	client, err := seedstream.New(testConfig(svc.endpoint()), seedstream.WithPlugin(p))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := <-p.err; err != nil {
		t.Fatalf("SetPrompt from plugin error = %v", err)
	}

	waitUntil(t, "plugin prompt on the wire", func() bool {
		for _, r := range svc.Requests() {
			if r["prompt"] == "from plugin" {
				return true
			}
		}
		return false
	})
}
