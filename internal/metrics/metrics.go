// Package metrics exposes counters for the auth operation outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK           = "ok"
	ResultConflict     = "conflict"
	ResultUnauthorized = "unauthorized"
	ResultError        = "error"
)

// Metrics counts auth operation outcomes per operation and result
type Metrics struct {
	operations *prometheus.CounterVec
	registry   *prometheus.Registry
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogauth_operations_total",
			Help: "Auth operations by operation (register, login, logout, refresh) and result.",
		}, []string{"operation", "result"}),
	}
}

// Observe records one finished operation
func (m *Metrics) Observe(operation string, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// Handler serves the Prometheus exposition endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
