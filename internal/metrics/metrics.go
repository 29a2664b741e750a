// Package metrics holds the Prometheus instruments of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviedb_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviedb_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moviedb_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviedb_upstream_requests_total",
			Help: "Upstream metadata API calls by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: ok, not_found, error, rejected, cache_hit
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviedb_upstream_request_duration_seconds",
			Help:    "Duration of upstream metadata API calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moviedb_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	SuggestionsReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviedb_suggestions_reviewed_total",
			Help: "Suggestions approved or rejected by the admin",
		},
		[]string{"decision"},
	)

	SuggestionsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviedb_suggestions_submitted_total",
			Help: "Suggestions submitted by visitors",
		},
	)

	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moviedb_live_clients",
			Help: "Connected websocket clients",
		},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviedb_admin_login_attempts_total",
			Help: "Admin login attempts by result",
		},
		[]string{"result"},
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordUpstream records the outcome of one upstream call. A zero duration
// (cache hits, rejected calls) is not observed.
func RecordUpstream(provider, outcome string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(provider, outcome).Inc()
	if duration > 0 {
		UpstreamDuration.WithLabelValues(provider).Observe(duration.Seconds())
	}
}

// SetBreakerState publishes a breaker state as 0, 1 or 2.
func SetBreakerState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordReview counts an admin decision ("approved" or "rejected").
func RecordReview(decision string) {
	SuggestionsReviewed.WithLabelValues(decision).Inc()
}

// RecordSuggestion counts a visitor suggestion.
func RecordSuggestion() {
	SuggestionsSubmitted.Inc()
}

// RecordLogin counts a login attempt ("success", "failure" or "rate_limited").
func RecordLogin(result string) {
	LoginAttempts.WithLabelValues(result).Inc()
}
