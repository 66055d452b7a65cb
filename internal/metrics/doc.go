// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Package metrics declares the Prometheus collectors for both binaries.

Every collector is registered on the default registry through promauto and
exposed by the gateway at /metrics:

	curl http://localhost:8080/metrics

# Available Metrics

API Metrics:
  - api_requests_total: labels method, endpoint, status_code
  - api_request_duration_seconds: labels method, endpoint
  - api_active_requests
  - api_rate_limit_hits_total: label endpoint

Upstream Metrics:
  - cubetrack_upstream_requests_total: label result
    (success, unreachable, bad_status, malformed, throttled)
  - cubetrack_upstream_request_duration_seconds

Gateway Cache Metrics:
  - cubetrack_cache_lookups_total: label outcome (hit, refresh, stale, error)
  - cubetrack_cache_entry_age_seconds
  - cache_hits_total / cache_misses_total: label cache_type (geojson)

Circuit Breaker Metrics:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: labels name, result
  - circuit_breaker_consecutive_failures
  - circuit_breaker_state_transitions_total: labels name, from_state, to_state

Poller Metrics:
  - cubetrack_poller_consecutive_failures
  - cubetrack_poller_interval_seconds
  - cubetrack_poller_cycles_total: label result
  - cubetrack_poller_callback_panics_total: label registry
  - cubetrack_poller_persist_errors_total: label operation

WebSocket Metrics:
  - websocket_connections_active
  - websocket_messages_sent_total
  - websocket_errors_total: label error_type
*/
package metrics
