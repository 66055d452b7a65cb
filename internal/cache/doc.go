// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Package cache provides a thread-safe in-memory TTL cache.

The gateway uses it for GeoJSON datasets read from disk, so a popular map
layer is read once per TTL rather than once per request. The live location
does not go through this package; it has its own single-entry cache in
internal/gateway because it needs stale fallback.

# Behavior

  - Expiry is checked lazily on Get and by a cleanup loop that runs every TTL
  - Load errors passed to GetOrLoad are never cached
  - Hits and misses are exported as cache_hits_total and cache_misses_total
    labelled by cache name

# Usage Example

	files := cache.New[[]byte]("geojson", 5*time.Minute)
	defer files.Close()

	data, err := files.GetOrLoad(name, func() ([]byte, error) {
	    return os.ReadFile(path)
	})
*/
package cache
