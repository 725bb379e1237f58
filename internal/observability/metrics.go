package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus instruments.
type Metrics struct {
	// HTTP surface.
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Page data loads.
	PageLoadsTotal   *prometheus.CounterVec
	PageLoadDuration *prometheus.HistogramVec
	PageRowsReturned *prometheus.HistogramVec

	// Action executions.
	ActionExecutionsTotal    *prometheus.CounterVec
	ActionDuration           *prometheus.HistogramVec
	ActionValidationFailures *prometheus.CounterVec

	// Remote data source calls.
	SourceRequestsTotal       *prometheus.CounterVec
	SourceRequestDuration     *prometheus.HistogramVec
	SourceCircuitBreakerState *prometheus.GaugeVec

	// Page registry.
	PagesLoaded      prometheus.Gauge
	PageReloadsTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all instruments with the given registerer.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsonpage_http_requests_total",
			Help: "Total HTTP requests by method, path pattern, and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jsonpage_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jsonpage_http_response_size_bytes",
			Help:    "HTTP response body size.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"method", "path"}),

		PageLoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsonpage_page_loads_total",
			Help: "Data loads by page id and outcome.",
		}, []string{"page_id", "status"}),
		PageLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jsonpage_page_load_duration_seconds",
			Help:    "Data load latency by page id.",
			Buckets: prometheus.DefBuckets,
		}, []string{"page_id"}),
		PageRowsReturned: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jsonpage_page_rows_returned",
			Help:    "Rows returned per data load.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"page_id"}),

		ActionExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsonpage_action_executions_total",
			Help: "Action executions by action id and outcome.",
		}, []string{"action_id", "status"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jsonpage_action_duration_seconds",
			Help:    "Action execution latency by action id.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action_id"}),
		ActionValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsonpage_action_validation_failures_total",
			Help: "Form validation failures by action id.",
		}, []string{"action_id"}),

		SourceRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsonpage_source_requests_total",
			Help: "Remote data source requests by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		SourceRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jsonpage_source_request_duration_seconds",
			Help:    "Remote data source latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		SourceCircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jsonpage_source_circuit_breaker_state",
			Help: "Circuit breaker state per endpoint (0 closed, 1 open, 2 half-open).",
		}, []string{"endpoint"}),

		PagesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jsonpage_pages_loaded",
			Help: "Number of pages in the registry.",
		}),
		PageReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsonpage_page_reloads_total",
			Help: "Page registry reloads by outcome.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSizeBytes,
		m.PageLoadsTotal,
		m.PageLoadDuration,
		m.PageRowsReturned,
		m.ActionExecutionsTotal,
		m.ActionDuration,
		m.ActionValidationFailures,
		m.SourceRequestsTotal,
		m.SourceRequestDuration,
		m.SourceCircuitBreakerState,
		m.PagesLoaded,
		m.PageReloadsTotal,
	)
	return m
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, respSize int) {
	statusStr := statusLabel(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordPageLoad records one data load for a page.
func (m *Metrics) RecordPageLoad(pageID, status string, duration time.Duration, rows int) {
	m.PageLoadsTotal.WithLabelValues(pageID, status).Inc()
	m.PageLoadDuration.WithLabelValues(pageID).Observe(duration.Seconds())
	if status == "success" {
		m.PageRowsReturned.WithLabelValues(pageID).Observe(float64(rows))
	}
}

// RecordActionExecution records one action execution.
func (m *Metrics) RecordActionExecution(actionID, status string, duration time.Duration) {
	m.ActionExecutionsTotal.WithLabelValues(actionID, status).Inc()
	m.ActionDuration.WithLabelValues(actionID).Observe(duration.Seconds())
}

// RecordActionValidationFailure records a rejected form submission.
func (m *Metrics) RecordActionValidationFailure(actionID string) {
	m.ActionValidationFailures.WithLabelValues(actionID).Inc()
}

// RecordSourceRequest records one remote data source exchange. Status 0 means
// the request failed before a response arrived.
func (m *Metrics) RecordSourceRequest(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = statusLabel(status)
	}
	m.SourceRequestsTotal.WithLabelValues(endpoint, label).Inc()
	m.SourceRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetCircuitBreakerState publishes the breaker state for an endpoint.
func (m *Metrics) SetCircuitBreakerState(endpoint string, state int) {
	m.SourceCircuitBreakerState.WithLabelValues(endpoint).Set(float64(state))
}

// RecordPageReload records one registry reload.
func (m *Metrics) RecordPageReload(status string, loaded int) {
	m.PageReloadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.PagesLoaded.Set(float64(loaded))
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
