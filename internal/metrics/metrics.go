// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream request results.
const (
	ResultSuccess     = "success"
	ResultUnreachable = "unreachable"
	ResultBadStatus   = "bad_status"
	ResultMalformed   = "malformed"
	ResultThrottled   = "throttled"
)

// Gateway cache lookup outcomes.
const (
	OutcomeHit     = "hit"
	OutcomeRefresh = "refresh"
	OutcomeStale   = "stale"
	OutcomeError   = "error"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of requests rejected by the per-IP rate limiter",
		},
		[]string{"endpoint"},
	)

	// Upstream Location API Metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubetrack_upstream_requests_total",
			Help: "Upstream location API requests by result",
		},
		[]string{"result"}, // success, unreachable, bad_status, malformed, throttled
	)

	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cubetrack_upstream_request_duration_seconds",
			Help:    "Duration of upstream location API requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Gateway Cache Metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubetrack_cache_lookups_total",
			Help: "Gateway location lookups by outcome",
		},
		[]string{"outcome"}, // hit, refresh, stale, error
	)

	CacheEntryAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cubetrack_cache_entry_age_seconds",
			Help: "Age of the cached location entry at the last lookup",
		},
	)

	// File Cache Metrics (GeoJSON datasets)
	FileCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of in-memory file cache hits",
		},
		[]string{"cache_type"},
	)

	FileCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of in-memory file cache misses",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Poller Metrics
	PollerConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cubetrack_poller_consecutive_failures",
			Help: "Failed poll cycles since the last success",
		},
	)

	PollerInterval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cubetrack_poller_interval_seconds",
			Help: "Current poll interval",
		},
	)

	PollerCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubetrack_poller_cycles_total",
			Help: "Completed poll cycles by result",
		},
		[]string{"result"}, // success, failure
	)

	PollerCallbackPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubetrack_poller_callback_panics_total",
			Help: "Observer callbacks that panicked",
		},
		[]string{"registry"}, // location, status, error
	)

	PollerPersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cubetrack_poller_persist_errors_total",
			Help: "Snapshot storage failures",
		},
		[]string{"operation"}, // load, save, clear
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordUpstreamRequest records one upstream call. Throttled calls never hit
// the network, so pass a zero duration and it is not observed.
func RecordUpstreamRequest(result string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(result).Inc()
	if duration > 0 {
		UpstreamRequestDuration.Observe(duration.Seconds())
	}
}

// RecordCacheLookup records a gateway lookup and the age of the entry that
// served it. A zero age with no data leaves the gauge alone.
func RecordCacheLookup(outcome string, entryAge time.Duration, hasData bool) {
	CacheLookups.WithLabelValues(outcome).Inc()
	if hasData {
		CacheEntryAge.Set(entryAge.Seconds())
	}
}

// RecordPollerCycle updates the poller gauges after a cycle.
func RecordPollerCycle(success bool, consecutiveFailures int, interval time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	PollerCycles.WithLabelValues(result).Inc()
	PollerConsecutiveFailures.Set(float64(consecutiveFailures))
	PollerInterval.Set(interval.Seconds())
}
