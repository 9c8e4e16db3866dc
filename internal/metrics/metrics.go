// Package metrics provides Prometheus metrics infrastructure for the
// replanner. It exports metrics via an HTTP endpoint in Prometheus
// format.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every replanner metric and the methods to record them.
type Registry struct {
	registry prometheus.Registerer

	httpRequestsTotal prometheus.CounterVec
	httpErrorsTotal   prometheus.CounterVec
	runsTotal         prometheus.CounterVec
	unresolvedTotal   prometheus.CounterVec
	overflowPasses    prometheus.CounterVec

	httpRequestDuration  prometheus.HistogramVec
	passDuration         prometheus.HistogramVec
	externalCallDuration prometheus.HistogramVec
	jobsScheduledPerRun  prometheus.HistogramVec

	activeRuns     prometheus.GaugeVec
	queueDepth     prometheus.GaugeVec
	lockedRunGauge prometheus.Gauge

	mu sync.RWMutex
}

// New creates and registers every metric against the global registry.
// It panics if any metric fails to register.
func New() *Registry {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers every metric against registerer.
// Used in tests to avoid colliding with the global registry.
func NewWithRegistry(registerer prometheus.Registerer) *Registry {
	m := &Registry{registry: registerer}

	m.httpRequestsTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method and path",
		},
		[]string{"method", "path"},
	)
	m.registry.MustRegister(&m.httpRequestsTotal)

	m.httpErrorsTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"error_type"},
	)
	m.registry.MustRegister(&m.httpErrorsTotal)

	m.runsTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replan_runs_total",
			Help: "Total replan runs by terminal outcome",
		},
		[]string{"outcome"},
	)
	m.registry.MustRegister(&m.runsTotal)

	m.unresolvedTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replan_unresolved_items_total",
			Help: "Total items left unresolved after a run, by failure reason",
		},
		[]string{"reason"},
	)
	m.registry.MustRegister(&m.unresolvedTotal)

	m.overflowPasses = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replan_overflow_passes_total",
			Help: "Total overflow passes executed, by pass number",
		},
		[]string{"pass_number"},
	)
	m.registry.MustRegister(&m.overflowPasses)

	m.httpRequestDuration = *prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	m.registry.MustRegister(&m.httpRequestDuration)

	m.passDuration = *prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replan_pass_duration_seconds",
			Help:    "Duration of one replan pass (today, overflow, final write)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pass"},
	)
	m.registry.MustRegister(&m.passDuration)

	m.externalCallDuration = *prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_call_duration_seconds",
			Help:    "Duration of calls to the optimizer, distance matrix, and device location services",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
	m.registry.MustRegister(&m.externalCallDuration)

	m.jobsScheduledPerRun = *prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replan_jobs_scheduled_per_run",
			Help:    "Number of jobs scheduled per completed run",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"outcome"},
	)
	m.registry.MustRegister(&m.jobsScheduledPerRun)

	m.activeRuns = *prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "replan_active_runs",
			Help: "Replan runs currently executing",
		},
		[]string{"trigger"},
	)
	m.registry.MustRegister(&m.activeRuns)

	m.queueDepth = *prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Pending job queue length",
		},
		[]string{"queue_name"},
	)
	m.registry.MustRegister(&m.queueDepth)

	m.lockedRunGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replan_single_flight_locked",
		Help: "1 while a replan run holds the single-flight lock, 0 otherwise",
	})
	m.registry.MustRegister(m.lockedRunGauge)

	return m
}

// RecordHTTPRequest records an HTTP request's count and latency.
func (m *Registry) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.httpRequestsTotal.WithLabelValues(method, path).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, statusCodeLabel(statusCode)).Observe(duration)
}

// RecordHTTPError records an HTTP error by errorType (e.g. "validation_error").
func (m *Registry) RecordHTTPError(errorType string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.httpErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordRunOutcome records a run's terminal outcome (e.g. "completed",
// "rejected_single_flight", "failed") and how many jobs it scheduled.
func (m *Registry) RecordRunOutcome(outcome string, jobsScheduled int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.jobsScheduledPerRun.WithLabelValues(outcome).Observe(float64(jobsScheduled))
}

// RecordUnresolved records one item left unresolved for reason.
func (m *Registry) RecordUnresolved(reason string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.unresolvedTotal.WithLabelValues(reason).Inc()
}

// RecordOverflowPass records that an overflow pass numbered passNumber ran.
func (m *Registry) RecordOverflowPass(passNumber string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.overflowPasses.WithLabelValues(passNumber).Inc()
}

// RecordPassDuration records how long one named pass took.
func (m *Registry) RecordPassDuration(pass string, seconds float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.passDuration.WithLabelValues(pass).Observe(seconds)
}

// RecordExternalCall records the latency of one call to service/operation.
func (m *Registry) RecordExternalCall(service, operation string, seconds float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.externalCallDuration.WithLabelValues(service, operation).Observe(seconds)
}

// SetActiveRuns sets the number of in-flight runs for trigger (e.g. "scheduled", "manual").
func (m *Registry) SetActiveRuns(trigger string, count int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.activeRuns.WithLabelValues(trigger).Set(float64(count))
}

// SetQueueDepth sets the pending job count for queueName.
func (m *Registry) SetQueueDepth(queueName string, depth int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.queueDepth.WithLabelValues(queueName).Set(float64(depth))
}

// SetSingleFlightLocked reports whether the single-flight guard is held.
func (m *Registry) SetSingleFlightLocked(locked bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if locked {
		m.lockedRunGauge.Set(1)
		return
	}
	m.lockedRunGauge.Set(0)
}

// Handler returns an HTTP handler that serves Prometheus metrics from this registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry.(prometheus.Gatherer), promhttp.HandlerOpts{})
}

func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
