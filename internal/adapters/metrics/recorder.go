// Package metrics exports session events as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/seedstream/internal/app"
	"github.com/bft-labs/seedstream/internal/domain"
)

const namespace = "seedstream"

// Recorder implements app.Observer on its own Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	framesSubmitted   prometheus.Counter
	framesTransmitted prometheus.Counter
	framesDisplayed   prometheus.Counter
	seedWrites        *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	connectionState   *prometheus.GaugeVec
	inference         prometheus.Histogram
}

// NewRecorder creates a recorder and registers its collectors, together
// with the Go and process collectors, on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		framesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "submitted_total",
			Help:      "Request frames handed to the connection throttle",
		}),
		framesTransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "transmitted_total",
			Help:      "Request frames written to the socket",
		}),
		framesDisplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "displayed_total",
			Help:      "Result frames accepted for display",
		}),
		seedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "seed",
			Name:      "writes_total",
			Help:      "Seed writes by source",
		}, []string{"source"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors reported by the session, by kind",
		}, []string{"kind"}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "1 for the current state of each keyed connection",
		}, []string{"key", "state"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "inference_seconds",
			Help:      "Server-reported inference time of displayed frames",
			Buckets:   []float64{.025, .05, .1, .2, .3, .5, 1, 2, 5},
		}),
	}

	r.registry.MustRegister(
		r.framesSubmitted,
		r.framesTransmitted,
		r.framesDisplayed,
		r.seedWrites,
		r.errorsTotal,
		r.connectionState,
		r.inference,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

var connStates = []app.ConnState{app.ConnConnecting, app.ConnConnected, app.ConnReconnecting, app.ConnClosed}

func (r *Recorder) OnConnectionState(key string, state app.ConnState) {
	for _, s := range connStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.connectionState.WithLabelValues(key, s.String()).Set(v)
	}
}

func (r *Recorder) OnFrameSubmitted(domain.RequestFrame) {
	r.framesSubmitted.Inc()
}

func (r *Recorder) OnFrameTransmitted(domain.RequestFrame) {
	r.framesTransmitted.Inc()
}

func (r *Recorder) OnSeedChanged(seed domain.SeedState) {
	r.seedWrites.WithLabelValues(seed.Source.String()).Inc()
}

func (r *Recorder) OnDisplay(d domain.DisplayState) {
	r.framesDisplayed.Inc()
	r.inference.Observe(d.Inference.Seconds())
}

func (r *Recorder) OnError(err error) {
	r.errorsTotal.WithLabelValues(errorKind(err)).Inc()
}

// errorKind maps an error to a low-cardinality label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrConnection):
		return "connection"
	case errors.Is(err, domain.ErrTransmission):
		return "transmission"
	case errors.Is(err, domain.ErrDecoding):
		return "decoding"
	case errors.Is(err, domain.ErrMalformedFrame):
		return "malformed"
	case errors.Is(err, domain.ErrRemote):
		return "remote"
	default:
		return "other"
	}
}

var _ app.Observer = (*Recorder)(nil)
