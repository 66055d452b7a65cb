// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package poller

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubetrack/internal/location"
)

// LoadStaticRecord reads a record for static mode from a JSON file. The
// record must carry valid coordinates.
func LoadStaticRecord(path string) (*location.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read static record: %w", err)
	}
	var rec location.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode static record %s: %w", path, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("static record %s: %w", path, err)
	}
	return &rec, nil
}
