// Package metrics exposes the service's Prometheus collectors. All methods
// are safe on a nil *Metrics so callers never need to check.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	reg prometheus.Gatherer

	gateDecisions    *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	webhookDuration  *prometheus.HistogramVec
	deadLetters      *prometheus.CounterVec
	externalWriteErr prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reg: reg,
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airodental",
			Name:      "gate_decisions_total",
			Help:      "Route gate decisions by app profile, route class and outcome.",
		}, []string{"profile", "class", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airodental",
			Name:      "webhook_events_total",
			Help:      "Identity provider webhook deliveries by event type and result.",
		}, []string{"event_type", "result"}),
		webhookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airodental",
			Name:      "webhook_processing_seconds",
			Help:      "Time spent applying a verified webhook event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airodental",
			Name:      "webhook_deadletters_total",
			Help:      "Dead-lettered membership events by status transition.",
		}, []string{"status"}),
		externalWriteErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airodental",
			Name:      "identity_metadata_write_errors_total",
			Help:      "Failed writes of plan metadata to the identity provider.",
		}),
	}
	reg.MustRegister(m.gateDecisions, m.webhookEvents, m.webhookDuration, m.deadLetters, m.externalWriteErr)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// GateDecision counts one gate outcome.
func (m *Metrics) GateDecision(profile, class, outcome string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(profile, class, outcome).Inc()
}

// WebhookEvent counts one delivery result: a sync result ("ok", "skipped",
// "stale", "deadlettered", "ignored") or a handler outcome ("duplicate",
// "invalid_signature", "rejected", "misconfigured", "error").
func (m *Metrics) WebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

// ObserveWebhook records processing time in seconds.
func (m *Metrics) ObserveWebhook(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookDuration.WithLabelValues(eventType).Observe(seconds)
}

// DeadLetter counts a dead-letter transition ("pending", "resolved", "abandoned").
func (m *Metrics) DeadLetter(status string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(status).Inc()
}

// ExternalWriteFailed counts a failed identity provider metadata write.
func (m *Metrics) ExternalWriteFailed() {
	if m == nil {
		return
	}
	m.externalWriteErr.Inc()
}
