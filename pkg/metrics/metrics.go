// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Requests by endpoint, not raw path, to bound label cardinality.
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	AuthenticationsTotal *prometheus.CounterVec
	ServiceRunsTotal     *prometheus.CounterVec
	RBACReloadsTotal     *prometheus.CounterVec
}

// New creates and registers all metrics on registry. A nil registry gets
// a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enms_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		AuthenticationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enms_authentications_total",
				Help: "Total number of credential checks",
			},
			[]string{"result"},
		),
		ServiceRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enms_service_runs_total",
				Help: "Total number of service runs",
			},
			[]string{"status"},
		),
		RBACReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enms_rbac_reloads_total",
				Help: "Total number of endpoint table reloads",
			},
			[]string{"status"},
		),
	}
	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.AuthenticationsTotal,
		m.ServiceRunsTotal,
		m.RBACReloadsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// ObserveAuthentication records the result of a credential check.
func (m *Metrics) ObserveAuthentication(success bool) {
	if m == nil {
		return
	}
	m.AuthenticationsTotal.WithLabelValues(outcome(success)).Inc()
}

// ObserveServiceRun records the result of a service run.
func (m *Metrics) ObserveServiceRun(success bool) {
	if m == nil {
		return
	}
	m.ServiceRunsTotal.WithLabelValues(outcome(success)).Inc()
}

// ObserveRBACReload records an endpoint table reload.
func (m *Metrics) ObserveRBACReload(success bool) {
	if m == nil {
		return
	}
	m.RBACReloadsTotal.WithLabelValues(outcome(success)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
