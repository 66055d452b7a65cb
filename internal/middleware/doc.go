// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Package middleware provides chi-compatible HTTP middleware owned by cubetrack.

Key Components:

  - RequestID: honours a well-formed X-Request-ID or generates a UUID, and
    puts it in the context for chi and for internal/logging
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern

Everything else in the stack (CORS, rate limiting, compression, panic
recovery) comes from chi and its companion modules; see internal/api.

Usage Example:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Get("/api/cube_location", h.CubeLocation)

Metrics Exported:

  - api_requests_total{method, endpoint, status_code}
  - api_request_duration_seconds{method, endpoint}
  - api_active_requests

Requests that match no route are labelled endpoint="unmatched".
*/
package middleware
