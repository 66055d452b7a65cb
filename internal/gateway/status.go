// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package gateway

// CacheStatus is the cache block of the health response.
type CacheStatus struct {
	HasData   bool    `json:"has_data"`
	LastFetch *string `json:"last_fetch"`
	CacheAge  *int64  `json:"cache_age"`
	IsFresh   bool    `json:"is_fresh"`
}

// Status describes the cache without taking the gateway lock, so it never
// waits on an upstream call in progress.
func (g *Gateway) Status() CacheStatus {
	cur := g.entry.Load()
	if cur == nil {
		return CacheStatus{}
	}
	age := nonNegative(g.now().Sub(cur.fetchedAt))
	last := formatTime(cur.fetchedAt)
	secs := int64(age.Seconds())
	return CacheStatus{
		HasData:   true,
		LastFetch: &last,
		CacheAge:  &secs,
		IsFresh:   age < g.cacheDuration,
	}
}
