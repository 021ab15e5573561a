package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

const metricsNamespace = "apexdraft"

// Metrics holds the Prometheus collectors for the API and the entity store.
// It owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	StoreOpsTotal       *prometheus.CounterVec
	StoreOpDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StoreOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "store_operations_total",
			Help:      "Total number of entity store operations",
		}, []string{"collection", "operation", "outcome"}),
		StoreOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of entity store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection", "operation"}),
	}
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StoreOpsTotal,
		m.StoreOpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveOp records one entity store operation.
func (m *Metrics) ObserveOp(collection, op string, err error, elapsed time.Duration) {
	m.StoreOpsTotal.WithLabelValues(collection, op, outcome(err)).Inc()
	m.StoreOpDuration.WithLabelValues(collection, op).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrInvalidCursor), errors.Is(err, types.ErrConflict):
		return "rejected"
	default:
		return "error"
	}
}
