// Package metrics defines the Prometheus collectors exported on /metrics.
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
	// HTTPRequestDuration tracks request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "podcastr_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// HTTPRequestsInFlight tracks requests being served.
	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "podcastr_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	// APIFetchDuration tracks calls to the episode API.
	APIFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "podcastr_api_fetch_duration_seconds",
		Help:    "Episode API request latencies in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint", "result"})

	// APICacheTotal counts cache lookups for API responses.
	APICacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podcastr_api_cache_total",
		Help: "Episode API cache lookups by result",
	}, []string{"endpoint", "result"})

	// ActiveSessions tracks visitor sessions held in memory.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "podcastr_sessions_active",
		Help: "Number of visitor sessions with a live player",
	})

	// PlayerTransitions counts store transitions by event type.
	PlayerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podcastr_player_transitions_total",
		Help: "Player state transitions by event type",
	}, []string{"event"})

	// EventStreams tracks open server-sent-event streams.
	EventStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "podcastr_event_streams_open",
		Help: "Number of open player event streams",
	})
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveAPIFetch records one episode API call.
func ObserveAPIFetch(endpoint string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	APIFetchDuration.WithLabelValues(endpoint, result).Observe(d.Seconds())
}

// ObserveAPICache records a cache hit or miss.
func ObserveAPICache(endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	APICacheTotal.WithLabelValues(endpoint, result).Inc()
}

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
