// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the waiverd service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// APIBuckets defines histogram buckets suited for API request
// latencies, ranging from 5ms to 10s.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method, endpoint, and
	// status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waiverd_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by
	// method and endpoint.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waiverd_request_duration_seconds",
			Help:    "Request duration",
			Buckets: APIBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// WaiversCreatedTotal counts successfully created waivers.
	WaiversCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waiverd_waivers_created_total",
			Help: "Waivers created",
		},
	)

	// NotifierFailuresTotal counts failed waiver notifications.
	NotifierFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waiverd_notifier_failures_total",
			Help: "Notification failures",
		},
	)

	// ResultLookupsTotal counts resultsdb lookups by outcome.
	ResultLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waiverd_result_lookups_total",
			Help: "Result lookups",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		WaiversCreatedTotal,
		NotifierFailuresTotal,
		ResultLookupsTotal,
	)
}
