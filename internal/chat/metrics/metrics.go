// Package metrics holds the Prometheus metrics for the chat ingress.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for chat. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Messages           *prometheus.CounterVec
	CompletionDuration prometheus.Histogram
}

// New creates and registers all chat metrics.
func New() *Metrics {
	return &Metrics{
		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chefmate_chat_messages_total",
			Help: "Incoming chat messages, by handling outcome",
		}, []string{"outcome"}),
		CompletionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chefmate_chat_completion_seconds",
			Help:    "Completion provider latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

// ObserveMessage records one handled message outcome.
func (m *Metrics) ObserveMessage(outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records provider latency in seconds.
func (m *Metrics) ObserveCompletion(seconds float64) {
	if m == nil {
		return
	}
	m.CompletionDuration.Observe(seconds)
}
