// Package metrics exposes Prometheus collectors for the simulator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll results
const (
	PollAnomaly = "anomaly"
	PollNormal  = "normal"
	PollError   = "error"
)

// Metrics groups the simulator's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	spawned     *prometheus.CounterVec
	evicted     prometheus.Counter
	polls       *prometheus.CounterVec
	bufferDepth prometheus.Gauge
	dropped     prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		spawned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attack_radar",
			Name:      "events_spawned_total",
			Help:      "Events generated and inserted into the live buffer, by origin.",
		}, []string{"source"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attack_radar",
			Name:      "events_evicted_total",
			Help:      "Events evicted from the head of the live buffer.",
		}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attack_radar",
			Name:      "anomaly_polls_total",
			Help:      "Classifier polls, by result.",
		}, []string{"result"}),
		bufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "attack_radar",
			Name:      "buffer_events",
			Help:      "Events currently held in the live buffer.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attack_radar",
			Name:      "notifications_dropped_total",
			Help:      "Session notifications dropped because the consumer fell behind.",
		}),
	}
	m.Registry.MustRegister(m.spawned, m.evicted, m.polls, m.bufferDepth, m.dropped)
	return m
}

// EventSpawned counts one inserted event from origin.
func (m *Metrics) EventSpawned(origin string) {
	if m == nil {
		return
	}
	m.spawned.WithLabelValues(origin).Inc()
}

// EventsEvicted counts n evicted events.
func (m *Metrics) EventsEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evicted.Add(float64(n))
}

// PollResult counts one classifier poll outcome.
func (m *Metrics) PollResult(result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
}

// SetBufferDepth records the current buffer length.
func (m *Metrics) SetBufferDepth(n int) {
	if m == nil {
		return
	}
	m.bufferDepth.Set(float64(n))
}

// NotificationDropped counts one dropped notification.
func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
