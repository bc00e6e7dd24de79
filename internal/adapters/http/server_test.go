package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bft-labs/seedstream/pkg/log"
)

func TestRouter(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "seedstream_frames_submitted_total 3\n")
	})
	healthy := true
	h := NewRouter(metrics,
		func() any { return map[string]any{"state": "Running", "sequence": 4} },
		func() error {
			if healthy {
				return nil
			}
			return errors.New("not connected")
		},
	)

	tests := []struct {
		name     string
		path     string
		sick     bool
		wantCode int
		wantBody string
	}{
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK, wantBody: "seedstream_frames_submitted_total 3\n"},
		{name: "healthy", path: "/healthz", wantCode: http.StatusOK, wantBody: `{"status":"ok"}` + "\n"},
		{name: "unhealthy", path: "/healthz", sick: true, wantCode: http.StatusServiceUnavailable},
		{name: "status", path: "/status", wantCode: http.StatusOK, wantBody: `{"sequence":4,"state":"Running"}` + "\n"},
		{name: "unknown", path: "/nope", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy = !tt.sick
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRouter_WithoutStatus(t *testing.T) {
	h := NewRouter(nil, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("/status code = %d, want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("/healthz code = %d, want 200", rr.Code)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewRouter(nil, nil, nil), log.Discard)
	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
