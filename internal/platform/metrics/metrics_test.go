package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveRequest("GET", "/api/contacts/", 200, time.Now())
	m.ObserveRequest("GET", "/api/contacts/", 200, time.Now())
	m.ObserveRequest("POST", "/api/contacts/", 400, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/contacts/", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/contacts/", "400")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveRequest("GET", "/", 200, time.Now()) })
}
