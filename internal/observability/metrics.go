package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts remote API calls by method, route and status.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_api_requests_total",
		Help: "Total number of remote API requests",
	}, []string{"method", "route", "status"})

	// APILatency records remote API latency by method and route.
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campus_api_request_duration_seconds",
		Help:    "Remote API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// TokenRefreshes counts refresh attempts by outcome (success, failure, shared).
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_token_refreshes_total",
		Help: "Total number of access token refresh attempts",
	}, []string{"outcome"})

	// Fallbacks counts degraded-mode answers by kind (posts, comments, offline_post).
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_fallbacks_total",
		Help: "Total number of fallback or offline answers served",
	}, []string{"kind"})

	// StoreErrors counts key-value store failures by backend and operation.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_store_errors_total",
		Help: "Total number of key-value store errors",
	}, []string{"backend", "operation"})
)

// TrackAPI returns a function that records latency and outcome when called (e.g. defer).
func TrackAPI(method, route string) func(status int) {
	start := time.Now()
	return func(status int) {
		APILatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		label := "error"
		if status > 0 {
			label = strconv.Itoa(status)
		}
		APIRequests.WithLabelValues(method, route, label).Inc()
	}
}
