package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks contact operations. A nil *Metrics is a no-op.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ContactsTotal     prometheus.Gauge
}

// New registers the contact metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contacts_operations_total",
			Help: "Contact service operations by name and outcome kind",
		}, []string{"op", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contacts_operation_duration_seconds",
			Help:    "Duration of contact service operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
		ContactsTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "contacts_stored",
			Help: "Number of stored contacts as of the last unfiltered list, create or delete",
		}),
	}
}

// Observe records one operation. outcome is "ok" or an error kind.
// Call with time.Now() at the start of the operation.
func (m *Metrics) Observe(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetStored records the current number of contacts.
func (m *Metrics) SetStored(n int) {
	if m == nil {
		return
	}
	m.ContactsTotal.Set(float64(n))
}
