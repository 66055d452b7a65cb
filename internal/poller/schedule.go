// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package poller

import "time"

// Status is the poller's health as shown to observers.
type Status string

const (
	StatusOnline   Status = "online"
	StatusRetrying Status = "retrying"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
	StatusStatic   Status = "static"
)

// Failure counts at which the poller slows down.
const (
	degradedAfter = 2
	offlineAfter  = 5
)

// schedule maps consecutive failed cycles to the next interval and status:
//
//	0     normal  online
//	1     normal  retrying
//	2..4  slow    degraded
//	5+    offline offline
func (c Config) schedule(failures int) (time.Duration, Status) {
	switch {
	case failures <= 0:
		return c.PollInterval, StatusOnline
	case failures < degradedAfter:
		return c.PollInterval, StatusRetrying
	case failures < offlineAfter:
		return c.SlowInterval, StatusDegraded
	default:
		return c.OfflineInterval, StatusOffline
	}
}

// backoff returns the wait before retry n (1-based): RetryDelay doubled n-1
// times.
func (c Config) backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return c.RetryDelay << (n - 1)
}
