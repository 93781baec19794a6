// ABOUTME: Prometheus counters for stream connections, events and report outcomes.
// ABOUTME: A nil *Metrics is valid and records nothing.
package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the session collectors.
type Metrics struct {
	Connects   prometheus.Counter
	Reconnects prometheus.Counter
	Events     *prometheus.CounterVec
	Reports    *prometheus.CounterVec
	State      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mdtview",
			Name:      "stream_connects_total",
			Help:      "Event stream connection attempts.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mdtview",
			Name:      "stream_reconnects_total",
			Help:      "Reconnects scheduled after a transport error.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdtview",
			Name:      "stream_events_total",
			Help:      "Stream events received, by kind.",
		}, []string{"kind"}),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdtview",
			Name:      "reports_total",
			Help:      "Reports delivered or failed, by source and result.",
		}, []string{"source", "result"}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mdtview",
			Name:      "connection_state",
			Help:      "Current connection state (0 idle .. 5 failed).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connects, m.Reconnects, m.Events, m.Reports, m.State)
	}
	return m
}

func (m *Metrics) connect() {
	if m != nil {
		m.Connects.Inc()
	}
}

func (m *Metrics) reconnect() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *Metrics) event(kind string) {
	if m != nil {
		m.Events.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) report(source, result string) {
	if m != nil {
		m.Reports.WithLabelValues(source, result).Inc()
	}
}

func (m *Metrics) state(s State) {
	if m != nil {
		m.State.Set(float64(s))
	}
}
