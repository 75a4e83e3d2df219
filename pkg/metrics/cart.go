package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics tracks cart slot persistence.
type CartMetrics struct {
	persistFailures *prometheus.CounterVec
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Failed writes of a cart slot.",
	}, []string{"slot"})
	reg.MustRegister(failures)
	return &CartMetrics{persistFailures: failures}
}

// IncPersistFailure counts a slot write that did not reach storage.
func (m *CartMetrics) IncPersistFailure(slot string) {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.WithLabelValues(normalizeLabel(slot)).Inc()
}
