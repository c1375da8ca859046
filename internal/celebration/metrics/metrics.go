package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the celebration module.
type Metrics struct {
	// Creations by outcome: "created", "rejected", "replayed"
	Creations *prometheus.CounterVec

	// Transitions by previous and new status
	Transitions *prometheus.CounterVec

	// Payment captures by outcome: "captured", "failed"
	Captures *prometheus.CounterVec
}

// New creates a new Metrics instance with all celebration module metrics registered.
func New() *Metrics {
	return &Metrics{
		Creations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "celebrate_celebration_creations_total",
			Help: "Total celebration creation attempts by outcome",
		}, []string{"outcome"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "celebrate_celebration_transitions_total",
			Help: "Total status transitions by previous and new status",
		}, []string{"from", "to"}),

		Captures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "celebrate_payment_captures_total",
			Help: "Total payment capture attempts by outcome",
		}, []string{"outcome"}),
	}
}

// IncrementCreation records a creation attempt outcome.
func (m *Metrics) IncrementCreation(outcome string) {
	if m != nil {
		m.Creations.WithLabelValues(outcome).Inc()
	}
}

// IncrementTransition records a status transition.
func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

// IncrementCapture records a payment capture outcome.
func (m *Metrics) IncrementCapture(outcome string) {
	if m != nil {
		m.Captures.WithLabelValues(outcome).Inc()
	}
}
