// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/cubetrack/internal/gateway"
)

// Health status values.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthStarting = "starting"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status           string              `json:"status"`
	CacheStatus      gateway.CacheStatus `json:"cache_status"`
	Uptime           float64             `json:"uptime"`
	Version          string              `json:"version"`
	Timestamp        string              `json:"timestamp"`
	WebSocketClients int                 `json:"websocket_clients"`
}

// healthStatus maps the cache block onto a status word.
func healthStatus(cs gateway.CacheStatus) string {
	switch {
	case !cs.HasData:
		return HealthStarting
	case cs.IsFresh:
		return HealthHealthy
	default:
		return HealthDegraded
	}
}

// Health reports cache state. It always answers 200 so orchestrators don't
// restart a gateway whose upstream is merely down; monitors read Status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	cs := h.locations.Status()

	resp := HealthResponse{
		Status:      healthStatus(cs),
		CacheStatus: cs,
		Uptime:      h.now().Sub(h.startTime).Seconds(),
		Version:     h.version,
		Timestamp:   h.now().UTC().Format(time.RFC3339),
	}
	if h.wsHub != nil {
		resp.WebSocketClients = h.wsHub.GetClientCount()
	}

	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, resp)
}
