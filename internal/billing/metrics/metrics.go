// Package metrics holds the Prometheus metrics for the billing pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for billing. A nil *Metrics is valid
// and records nothing, so tests can skip registration.
type Metrics struct {
	WebhookEvents      *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	EntitlementReads   prometheus.Counter
}

// New creates and registers all billing metrics.
func New() *Metrics {
	return &Metrics{
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chefmate_billing_webhook_events_total",
			Help: "Webhook events received, by event type and processing outcome",
		}, []string{"type", "outcome"}),
		ProcessingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chefmate_billing_webhook_processing_seconds",
			Help:    "Time spent processing a webhook event after the ack",
			Buckets: prometheus.DefBuckets,
		}),
		EntitlementReads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chefmate_billing_entitlement_reads_total",
			Help: "Entitlement projection reads",
		}),
	}
}

// ObserveEvent records one webhook event outcome.
func (m *Metrics) ObserveEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveProcessing records post-ack processing time in seconds.
func (m *Metrics) ObserveProcessing(seconds float64) {
	if m == nil {
		return
	}
	m.ProcessingDuration.Observe(seconds)
}

// IncEntitlementReads counts one entitlement read.
func (m *Metrics) IncEntitlementReads() {
	if m == nil {
		return
	}
	m.EntitlementReads.Inc()
}
