// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubetrack/internal/location"
)

// SnapshotVersion is bumped whenever the persisted layout changes. Snapshots
// of any other version are ignored.
const SnapshotVersion = 1

// Reasons a stored snapshot is treated as absent.
var (
	errSnapshotCorrupt = errors.New("snapshot is corrupt")
	errSnapshotVersion = errors.New("snapshot version mismatch")
	errSnapshotExpired = errors.New("snapshot is too old")
	errSnapshotInvalid = errors.New("snapshot has no valid location")
)

// Snapshot is what the poller persists after every successful fetch.
type Snapshot struct {
	LastLocation    *location.Enriched  `json:"last_location"`
	LocationHistory []location.Enriched `json:"location_history"`
	SavedAt         time.Time           `json:"saved_at"`
	Version         int                 `json:"version"`
}

func encodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot parses data and applies the load rules. maxAge gates on
// SavedAt. Invalid history entries are dropped rather than failing the load.
func decodeSnapshot(data []byte, now time.Time, maxAge time.Duration) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errSnapshotCorrupt, err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", errSnapshotVersion, s.Version, SnapshotVersion)
	}
	if s.SavedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing saved_at", errSnapshotCorrupt)
	}
	if age := now.Sub(s.SavedAt); age > maxAge {
		return nil, fmt.Errorf("%w: saved %s", errSnapshotExpired, location.FormatAge(age))
	}
	if s.LastLocation == nil {
		return nil, errSnapshotInvalid
	}
	if err := s.LastLocation.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errSnapshotInvalid, err)
	}

	history := s.LocationHistory[:0]
	for _, e := range s.LocationHistory {
		if e.Validate() == nil {
			history = append(history, e)
		}
	}
	s.LocationHistory = history
	return &s, nil
}
