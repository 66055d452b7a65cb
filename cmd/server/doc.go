// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Command server runs the cubetrack gateway.

It shields a rate-limited third-party location API behind a TTL cache and
serves the result to browsers and pollers:

	cubetrack-server
	├── messaging-layer
	│   └── websocket-hub
	└── api-layer
	    └── http-server

Requests for /api/cube_location refresh the cache at most once per
CACHE_DURATION; concurrent callers share one upstream call. When the
upstream fails the last good record is served with stale=true. Every
successful refresh is pushed to /api/ws clients.

Configuration comes from defaults, an optional YAML file (CONFIG_PATH) and
the environment. UPSTREAM_URL is required:

	export UPSTREAM_URL=https://tracker.example.org/api/v1/devices/cube
	export GEOJSON_DIR=/srv/cubetrack/geojson
	./server

Changing logging.level in the config file takes effect without a restart.
SIGINT or SIGTERM drains HTTP connections and closes websocket clients.
*/
package main
