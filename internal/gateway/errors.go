// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package gateway

import (
	"errors"

	"github.com/tomtom215/cubetrack/internal/location"
)

// ErrNoData matches every *NoDataError.
var ErrNoData = errors.New("no location data available")

// NoDataError is returned when a refresh failed and nothing was ever cached.
type NoDataError struct {
	Err error
}

func (e *NoDataError) Error() string {
	if e.Err == nil {
		return ErrNoData.Error()
	}
	return ErrNoData.Error() + ": " + e.Err.Error()
}

func (e *NoDataError) Unwrap() error { return e.Err }

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

// ErrorRecord renders e as the response body.
func (e *NoDataError) ErrorRecord() location.ErrorRecord {
	rec := location.ErrorRecord{
		Error:   "location_unavailable",
		Message: "Unable to fetch location data and no cached data is available",
	}
	if e.Err != nil {
		rec.Details = e.Err.Error()
	}
	return rec
}
