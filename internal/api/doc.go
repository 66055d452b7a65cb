// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Package api is the HTTP surface of the cubetrack gateway.

Routes:

	GET     /health                  cache status, uptime and version (always 200)
	GET     /metrics                 Prometheus exposition
	GET     /api/cube_location       latest record, or 503 with an error record
	GET     /api/geojson/{dataset}   static GeoJSON overlay from GEOJSON_DIR
	GET     /api/ws                  live location_update push
	OPTIONS /api/*                   CORS preflight (200)

Everything under /api shares CORS, per-IP rate limiting (go-chi/httprate)
and the API security headers. Request IDs from the middleware package are
bridged into the logging context for every route.

Error bodies use location.ErrorRecord so the poller and browser clients can
parse failures the same way they parse NoDataError responses.
*/
package api
