package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout attempts and their outcomes.
type CheckoutMetrics struct {
	duration   *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
	unresolved prometheus.Counter
	inFlight   prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	unresolved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_unresolved_lines_total",
		Help: "Cart lines skipped because no inventory record matched.",
	})
	inFlight := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_inflight_rejections_total",
		Help: "Checkouts rejected because another one was running for the same cart.",
	})
	reg.MustRegister(duration, outcomes, unresolved, inFlight)
	return &CheckoutMetrics{
		duration:   duration,
		outcomes:   outcomes,
		unresolved: unresolved,
		inFlight:   inFlight,
	}
}

// ObserveOutcome counts one checkout attempt and records how long it took.
func (m *CheckoutMetrics) ObserveOutcome(outcome string, duration time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.outcomes.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(duration.Seconds())
}

// AddUnresolved counts cart lines dropped during reconciliation.
func (m *CheckoutMetrics) AddUnresolved(n int) {
	if m == nil || m.unresolved == nil || n <= 0 {
		return
	}
	m.unresolved.Add(float64(n))
}

func (m *CheckoutMetrics) IncInFlightRejection() {
	if m == nil || m.inFlight == nil {
		return
	}
	m.inFlight.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
