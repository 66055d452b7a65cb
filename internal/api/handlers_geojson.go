// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cubetrack/internal/logging"
	"github.com/tomtom215/cubetrack/internal/validation"
)

// GeoJSONContentType is the RFC 7946 media type.
const GeoJSONContentType = "application/geo+json"

var errInvalidGeoJSON = errors.New("file is not valid JSON")

// GeoJSON serves {GeoJSONDir}/{dataset}.geojson. The dataset name is
// restricted to [a-z0-9_]+ so it can never escape the directory.
func (h *Handler) GeoJSON(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dataset")
	if !validation.ValidDataset(name) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidDataset,
			"Dataset name must contain only lowercase letters, digits and underscores", nil)
		return
	}

	data, err := h.files.GetOrLoad(name, func() ([]byte, error) {
		return h.readDataset(name)
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logging.Ctx(r.Context()).Debug().Str("dataset", name).Msg("GeoJSON dataset not found")
		respondError(w, http.StatusNotFound, ErrCodeDatasetNotFound, fmt.Sprintf("Dataset %q not found", name), nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, ErrCodeDatasetUnreadable, "Dataset could not be read", err)
		return
	}

	etag := generateETag(data)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeBody(w, http.StatusOK, GeoJSONContentType, data)
}

// readDataset loads and sanity checks one file. Errors are not cached, so a
// file dropped into the directory later is picked up on the next request.
func (h *Handler) readDataset(name string) ([]byte, error) {
	path := filepath.Join(h.geojsonDir, name+".geojson")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: %w", path, errInvalidGeoJSON)
	}
	return data, nil
}
