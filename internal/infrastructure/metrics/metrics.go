// Package metrics exposes service metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CRMCallsTotal   *prometheus.CounterVec
	CRMCallDuration *prometheus.HistogramVec

	DocumentsProcessed *prometheus.CounterVec
	DocumentRows       *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	m.CRMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_calls_total",
			Help: "Total number of CRM REST calls by outcome",
		},
		[]string{"method", "outcome"},
	)
	m.CRMCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_call_duration_seconds",
			Help:    "CRM REST call duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	m.DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_processed_total",
			Help: "Document requests by type and outcome",
		},
		[]string{"doc_type", "outcome"},
	)
	m.DocumentRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_rows_total",
			Help: "Product rows by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CRMCallsTotal,
		m.CRMCallDuration,
		m.DocumentsProcessed,
		m.DocumentRows,
	)
	return m
}

// Handler returns the exposition handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records one HTTP request. path is the route template.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// CRMCall records one remote call.
func (m *Metrics) CRMCall(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CRMCallsTotal.WithLabelValues(method, outcome).Inc()
	m.CRMCallDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// DocumentProcessed records the outcome of one document request.
func (m *Metrics) DocumentProcessed(docType, outcome string) {
	if m == nil {
		return
	}
	m.DocumentsProcessed.WithLabelValues(docType, outcome).Inc()
}

// RowsObserved adds n rows with the given result.
func (m *Metrics) RowsObserved(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DocumentRows.WithLabelValues(result).Add(float64(n))
}
