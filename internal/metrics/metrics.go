// Package metrics exposes the Prometheus collectors for the API server, the
// migrator worker, and the keypair pool.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application collectors.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moonzip",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonzip",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moonzip",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	KeypairPoolDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moonzip",
		Subsystem: "keypair_pool",
		Name:      "depth",
		Help:      "Number of unassigned keypairs remaining in the pool.",
	})

	MigratorIterations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonzip",
		Subsystem: "migrator",
		Name:      "iterations_total",
		Help:      "Total migrator loop iterations by outcome.",
	}, []string{"migration", "outcome"})

	MigratorInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moonzip",
		Subsystem: "migrator",
		Name:      "in_flight",
		Help:      "Number of migrations currently being built/submitted.",
	})

	ProjectsByStage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "moonzip",
		Subsystem: "projects",
		Name:      "by_stage",
		Help:      "Number of projects currently in each lifecycle stage.",
	}, []string{"stage"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		KeypairPoolDepth,
		MigratorIterations,
		MigratorInFlight,
		ProjectsByStage,
	)
}

// IncrementInFlight increments the in-flight HTTP gauge.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight decrements the in-flight HTTP gauge.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records a completed HTTP request's status and latency.
func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// Handler returns the /metrics HTTP handler for the process registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
