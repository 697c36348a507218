// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts requests by handler, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastetrack_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	// HTTPRequestDuration observes request latency by handler and method.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wastetrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)

	// MutationsApplied counts record mutations the reactor turned into
	// aggregate increments, by operation (create/update/delete).
	MutationsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastetrack_mutations_applied_total",
			Help: "Record mutations applied to aggregates",
		},
		[]string{"op"},
	)

	// EventsSkipped counts malformed records the delta builder refused.
	EventsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wastetrack_events_skipped_total",
			Help: "Malformed waste events skipped during aggregation",
		},
	)

	// ReactorFailures counts mutations that could not be applied after
	// bounded transaction retries.
	ReactorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wastetrack_reactor_failures_total",
			Help: "Mutations that failed to apply to aggregates",
		},
	)

	// BackfillRuns counts backfill operations by kind and outcome.
	BackfillRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastetrack_backfill_runs_total",
			Help: "Backfill recompute operations",
		},
		[]string{"op", "status"},
	)

	// AuditDrift counts monthly documents the nightly audit found out of
	// sync with the sum of their daily documents.
	AuditDrift = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wastetrack_audit_drift_total",
			Help: "Monthly aggregates found drifted from their daily sum",
		},
	)

	// BackfillDuration observes backfill latency by kind.
	BackfillDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wastetrack_backfill_duration_seconds",
			Help:    "Backfill recompute duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"op"},
	)
)

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request count and duration for a named handler group.
func Middleware(handlerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			HTTPRequestsTotal.WithLabelValues(handlerName, r.Method, strconv.Itoa(rec.status)).Inc()
			HTTPRequestDuration.WithLabelValues(handlerName, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
