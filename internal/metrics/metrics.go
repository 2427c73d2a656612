// Package metrics exposes Prometheus counters for authentication, sessions and the realtime channel.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ticket_gateway"

// Metrics groups the gateway collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	AuthAttempts   *prometheus.CounterVec
	SessionsIssued prometheus.Counter
	Handshakes     *prometheus.CounterVec
	TicketLookup   prometheus.Histogram
	AuditDropped   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Connect authentication attempts by method and outcome code.",
		}, []string{"method", "code"}),
		SessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Session tokens issued.",
		}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_handshakes_total",
			Help:      "Realtime channel handshakes by outcome code.",
		}, []string{"code"}),
		TicketLookup: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ticket_gate_seconds",
			Help:      "Time spent in the ticket gate per connect.",
			Buckets:   prometheus.DefBuckets,
		}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit events dropped because the queue was full.",
		}),
	}
	m.registry.MustRegister(
		m.AuthAttempts, m.SessionsIssued, m.Handshakes, m.TicketLookup, m.AuditDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAuth counts one attempt; code is empty on success.
func (m *Metrics) ObserveAuth(method, code string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "none"
	}
	if code == "" {
		code = "OK"
	}
	m.AuthAttempts.WithLabelValues(method, code).Inc()
}

func (m *Metrics) ObserveHandshake(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.Handshakes.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveGate(d time.Duration) {
	if m == nil {
		return
	}
	m.TicketLookup.Observe(d.Seconds())
}

func (m *Metrics) IncSessions() {
	if m == nil {
		return
	}
	m.SessionsIssued.Inc()
}

func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
