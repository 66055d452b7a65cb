// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/cubetrack/internal/gateway"
	"github.com/tomtom215/cubetrack/internal/logging"
)

// CubeLocation serves the gateway's current record. Stale data is still a
// 200; only a gateway with nothing cached answers 503.
func (h *Handler) CubeLocation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	rec, err := h.locations.GetLocation(r.Context())
	if err != nil {
		var noData *gateway.NoDataError
		if errors.As(err, &noData) {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("No location data to serve")
			respondJSON(w, http.StatusServiceUnavailable, noData.ErrorRecord())
			return
		}
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Location service unavailable", err)
		return
	}

	if rec.Stale {
		logging.Ctx(r.Context()).Debug().Str("api_error", rec.APIError).Msg("Serving stale location")
	}
	respondJSON(w, http.StatusOK, rec)
}
