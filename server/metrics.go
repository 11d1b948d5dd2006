package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/waypoint/event"
)

// Metrics counts tour activity. It is an event.Sink, so it sits in the
// session sink router next to the other consumers.
type Metrics struct {
	reg *prometheus.Registry

	events          *prometheus.CounterVec
	completions     prometheus.Counter
	navigations     *prometheus.CounterVec
	dummies         prometheus.Counter
	progress        prometheus.Gauge
	step            prometheus.Gauge
	persistFailures *prometheus.CounterVec
	requests        *prometheus.CounterVec
}

// NewMetrics registers the tour metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "events_total",
			Help:      "Tour events emitted, by type.",
		}, []string{"type"}),
		completions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "completions_total",
			Help:      "Tours walked to the end.",
		}),
		navigations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "navigations_total",
			Help:      "Cross-route navigations, by mode.",
		}, []string{"mode"}),
		dummies: f.NewCounter(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "dummy_targets_total",
			Help:      "Steps shown over the page because their target was missing.",
		}),
		progress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "waypoint",
			Name:      "progress_percent",
			Help:      "Last reported tour progress.",
		}),
		step: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "waypoint",
			Name:      "current_step",
			Help:      "Index of the step shown last.",
		}),
		persistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "persist_failures_total",
			Help:      "Tour record storage failures, by operation.",
		}, []string{"op"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waypoint",
			Name:      "http_requests_total",
			Help:      "Control API requests, by operation and status class.",
		}, []string{"op", "status"}),
	}
}

// Emit implements event.Sink.
func (m *Metrics) Emit(_ context.Context, ev event.Event) error {
	m.events.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case event.Completed:
		m.completions.Inc()
		m.progress.Set(100)
	case event.Navigating:
		m.navigations.WithLabelValues(ev.Reason).Inc()
	case event.Step:
		m.step.Set(float64(ev.StepIndex))
		if ev.Dummy {
			m.dummies.Inc()
		}
	case event.Progress:
		m.progress.Set(ev.Progress)
	}
	return nil
}

// Close implements event.Sink.
func (m *Metrics) Close() error { return nil }

// PersistFailed matches persist.Config.OnFailure.
func (m *Metrics) PersistFailed(op string, _ error) {
	m.persistFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) request(op string, code int) {
	status := "2xx"
	switch {
	case code >= 500:
		status = "5xx"
	case code >= 400:
		status = "4xx"
	}
	m.requests.WithLabelValues(op, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
