// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package location

import (
	"fmt"
	"time"
)

// Freshness classifies how old a record is.
type Freshness int

const (
	Fresh Freshness = iota
	Stale
	Expired
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("freshness(%d)", int(f))
	}
}

// Default thresholds.
const (
	DefaultStaleAfter  = 10 * time.Minute
	DefaultExpireAfter = 24 * time.Hour
)

// Policy is the two-threshold freshness rule used by both binaries. Past
// StaleAfter a record is still served but flagged; past ExpireAfter it is
// flagged expired and a persisted snapshot of that age is ignored.
type Policy struct {
	StaleAfter  time.Duration
	ExpireAfter time.Duration
}

// DefaultPolicy returns 10m / 24h.
func DefaultPolicy() Policy {
	return Policy{StaleAfter: DefaultStaleAfter, ExpireAfter: DefaultExpireAfter}
}

// Classify maps an age to a Freshness. Boundaries are exclusive: a record
// exactly StaleAfter old is still fresh.
func (p Policy) Classify(age time.Duration) Freshness {
	switch {
	case age > p.ExpireAfter:
		return Expired
	case age > p.StaleAfter:
		return Stale
	default:
		return Fresh
	}
}

// Age returns how old e is at now. It prefers the upstream timestamp and
// falls back to fetched_at. ok is false when neither parses. Timestamps in
// the future count as age zero.
func Age(e *Enriched, now time.Time) (age time.Duration, ok bool) {
	var ref time.Time
	if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); e.Timestamp != "" && err == nil {
		ref = t
	} else if t, fok := e.FetchedTime(); fok {
		ref = t
	} else {
		return 0, false
	}
	age = now.Sub(ref)
	if age < 0 {
		age = 0
	}
	return age, true
}

// FormatAge renders d as a short label such as "just now", "42s ago",
// "3m ago", "5h ago" or "2d ago".
func FormatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
