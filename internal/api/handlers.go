// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package api

import (
	"context"
	"time"

	"github.com/tomtom215/cubetrack/internal/cache"
	"github.com/tomtom215/cubetrack/internal/config"
	"github.com/tomtom215/cubetrack/internal/gateway"
	"github.com/tomtom215/cubetrack/internal/location"
	ws "github.com/tomtom215/cubetrack/internal/websocket"
)

// GeoJSONCacheTTL is how long a dataset file stays in memory.
const GeoJSONCacheTTL = 5 * time.Minute

// LocationSource is what the handlers need from the gateway.
type LocationSource interface {
	GetLocation(ctx context.Context) (*location.Enriched, error)
	Status() gateway.CacheStatus
}

// Handler serves every cubetrack endpoint.
type Handler struct {
	locations  LocationSource
	files      *cache.Cache[[]byte]
	wsHub      *ws.Hub
	config     *config.Config
	geojsonDir string
	version    string
	startTime  time.Time
	now        func() time.Time
}

// NewGeoJSONCache returns the file cache the GeoJSON handler expects.
func NewGeoJSONCache() *cache.Cache[[]byte] {
	return cache.New[[]byte]("geojson", GeoJSONCacheTTL)
}

// NewHandler wires the handlers. hub may be nil, in which case /api/ws
// answers 503. files may be nil, in which case a fresh GeoJSON cache is
// created.
func NewHandler(src LocationSource, hub *ws.Hub, files *cache.Cache[[]byte], cfg *config.Config, version string) *Handler {
	if files == nil {
		files = NewGeoJSONCache()
	}
	h := &Handler{
		locations: src,
		files:     files,
		wsHub:     hub,
		config:    cfg,
		version:   version,
		startTime: time.Now(),
		now:       time.Now,
	}
	if cfg != nil {
		h.geojsonDir = cfg.Server.GeoJSONDir
	}
	return h
}
