package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance module.
type Metrics struct {
	// Verdicts by validation method and outcome
	Verdicts *prometheus.CounterVec

	// Resolver fallbacks: enhanced path failed, legacy rule applied
	ResolverFallbacks prometheus.Counter

	// Resolver call latency
	ResolverLatency prometheus.Histogram

	// PAC tip verdicts by outcome
	PACVerdicts *prometheus.CounterVec
}

// New creates a new Metrics instance with all compliance module metrics registered.
func New() *Metrics {
	return &Metrics{
		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "celebrate_compliance_verdicts_total",
			Help: "Total donation compliance verdicts by validation method and outcome",
		}, []string{"method", "outcome"}), // method: "enhanced"|"legacy", outcome: "compliant"|"non_compliant"

		ResolverFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "celebrate_compliance_resolver_fallbacks_total",
			Help: "Total times the election cycle resolver failed and legacy rules were applied",
		}),

		ResolverLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "celebrate_compliance_resolver_duration_seconds",
			Help:    "Duration of election cycle resolver calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		PACVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "celebrate_compliance_pac_verdicts_total",
			Help: "Total PAC tip verdicts by outcome",
		}, []string{"outcome"}),
	}
}

// IncrementVerdict records a donation compliance verdict.
func (m *Metrics) IncrementVerdict(method string, compliant bool) {
	if m != nil {
		m.Verdicts.WithLabelValues(method, outcomeLabel(compliant)).Inc()
	}
}

// IncrementFallback records an enhanced-to-legacy fallback.
func (m *Metrics) IncrementFallback() {
	if m != nil {
		m.ResolverFallbacks.Inc()
	}
}

// ObserveResolverLatency records the duration of a resolver call.
func (m *Metrics) ObserveResolverLatency(d time.Duration) {
	if m != nil {
		m.ResolverLatency.Observe(d.Seconds())
	}
}

// IncrementPACVerdict records a PAC tip verdict.
func (m *Metrics) IncrementPACVerdict(compliant bool) {
	if m != nil {
		m.PACVerdicts.WithLabelValues(outcomeLabel(compliant)).Inc()
	}
}

func outcomeLabel(compliant bool) string {
	if compliant {
		return "compliant"
	}
	return "non_compliant"
}
