package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts rejected requests. A nil *Metrics is a no-op.
type Metrics struct {
	Denied prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Denied: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "contacts_ratelimit_denied_total",
			Help: "Requests rejected by the per-IP rate limit",
		}),
	}
}

func (m *Metrics) IncDenied() {
	if m == nil {
		return
	}
	m.Denied.Inc()
}
