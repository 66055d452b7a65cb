// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubetrack/internal/cache"
	"github.com/tomtom215/cubetrack/internal/config"
	"github.com/tomtom215/cubetrack/internal/gateway"
	"github.com/tomtom215/cubetrack/internal/location"
	ws "github.com/tomtom215/cubetrack/internal/websocket"
)

const sampleGeoJSON = `{"type":"FeatureCollection","features":[]}`

type fakeSource struct {
	rec    *location.Enriched
	err    error
	status gateway.CacheStatus
}

func (f *fakeSource) GetLocation(context.Context) (*location.Enriched, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.rec.Clone()
	return &out, nil
}

func (f *fakeSource) Status() gateway.CacheStatus { return f.status }

func testConfig(dir string) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{GeoJSONDir: dir},
		Security: config.SecurityConfig{CORSOrigins: []string{"*"}, RateLimitDisabled: true},
	}
}

// newTestHandler returns a handler over src with a temporary GeoJSON dir.
func newTestHandler(t *testing.T, src LocationSource, hub *ws.Hub) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	files := cache.New[[]byte]("geojson_test", GeoJSONCacheTTL)
	t.Cleanup(files.Close)
	return NewHandler(src, hub, files, testConfig(dir), "1.2.3"), dir
}

func newTestRouter(t *testing.T, src LocationSource) (http.Handler, string) {
	t.Helper()
	h, dir := newTestHandler(t, src, nil)
	return NewRouter(h, NewChiMiddleware(ChiMiddlewareConfigFrom(h.config.Security))).SetupChi(), dir
}

func serve(t *testing.T, handler http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeErrorRecord(t *testing.T, rec *httptest.ResponseRecorder) location.ErrorRecord {
	t.Helper()
	var body location.ErrorRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not an error record: %v (%s)", err, rec.Body.String())
	}
	return body
}

func freshRecord() *location.Enriched {
	age := int64(12)
	return &location.Enriched{
		Record: location.NewRecord(40.7864, -119.2065, "2025-08-25T18:00:00Z"),
		Annotations: location.Annotations{
			Cached:    true,
			CacheAge:  &age,
			FetchedAt: "2025-08-25T18:00:05Z",
		},
	}
}

func TestCubeLocation_OK(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{rec: freshRecord()})

	rec := serve(t, router, http.MethodGet, "/api/cube_location", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["lat"] != 40.7864 || body["lng"] != -119.2065 {
		t.Errorf("coordinates = %v,%v", body["lat"], body["lng"])
	}
	if body["cached"] != true || body["cache_age"] != float64(12) {
		t.Errorf("annotations missing: %v", body)
	}
}

func TestCubeLocation_StaleIsStillOK(t *testing.T) {
	t.Parallel()
	stale := freshRecord()
	stale.Stale = true
	stale.APIError = "upstream returned 502"
	router, _ := newTestRouter(t, &fakeSource{rec: stale})

	rec := serve(t, router, http.MethodGet, "/api/cube_location", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["stale"] != true || body["api_error"] != "upstream returned 502" {
		t.Errorf("stale annotations missing: %v", body)
	}
}

func TestCubeLocation_NoData(t *testing.T) {
	t.Parallel()
	src := &fakeSource{err: &gateway.NoDataError{Err: errors.New("dial tcp: connection refused")}}
	router, _ := newTestRouter(t, src)

	rec := serve(t, router, http.MethodGet, "/api/cube_location", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeErrorRecord(t, rec)
	if body.Error != "location_unavailable" || body.Message == "" {
		t.Errorf("error record = %+v", body)
	}
	if body.Details != "dial tcp: connection refused" {
		t.Errorf("Details = %q", body.Details)
	}
}

func TestCubeLocation_OtherError(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{err: context.DeadlineExceeded})

	rec := serve(t, router, http.MethodGet, "/api/cube_location", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body := decodeErrorRecord(t, rec); body.Error != ErrCodeServiceUnavailable {
		t.Errorf("Error = %q", body.Error)
	}
}

func TestGeoJSON_Serves(t *testing.T) {
	t.Parallel()
	router, dir := newTestRouter(t, &fakeSource{rec: freshRecord()})
	if err := os.WriteFile(filepath.Join(dir, "camps_2025.geojson"), []byte(sampleGeoJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	rec := serve(t, router, http.MethodGet, "/api/geojson/camps_2025", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != GeoJSONContentType {
		t.Errorf("Content-Type = %q, want %q", got, GeoJSONContentType)
	}
	if rec.Body.String() != sampleGeoJSON {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("ETag not set")
	}
}

func TestGeoJSON_InvalidName(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{})

	tests := []struct {
		name    string
		dataset string
	}{
		{"uppercase", "Streets"},
		{"hyphen", "art-cars"},
		{"dot", "streets.v2"},
		{"encoded traversal", "..%2Fetc%2Fpasswd"},
		{"space", "my%20map"},
		{"empty", ""},
		{"nested", "a/b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, http.MethodGet, "/api/geojson/"+tt.dataset, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeErrorRecord(t, rec); body.Error != ErrCodeInvalidDataset {
				t.Errorf("Error = %q", body.Error)
			}
		})
	}
}

func TestGeoJSON_Missing(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{})

	rec := serve(t, router, http.MethodGet, "/api/geojson/nowhere", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeErrorRecord(t, rec); body.Error != ErrCodeDatasetNotFound {
		t.Errorf("Error = %q", body.Error)
	}
}

func TestGeoJSON_InvalidJSON(t *testing.T) {
	t.Parallel()
	router, dir := newTestRouter(t, &fakeSource{})
	if err := os.WriteFile(filepath.Join(dir, "broken.geojson"), []byte(`{"type":`), 0o600); err != nil {
		t.Fatal(err)
	}

	rec := serve(t, router, http.MethodGet, "/api/geojson/broken", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeErrorRecord(t, rec); body.Error != ErrCodeDatasetUnreadable {
		t.Errorf("Error = %q", body.Error)
	}
}

func TestGeoJSON_CachedInMemory(t *testing.T) {
	t.Parallel()
	h, dir := newTestHandler(t, &fakeSource{}, nil)
	router := NewRouter(h, nil).SetupChi()
	path := filepath.Join(dir, "streets.geojson")
	if err := os.WriteFile(path, []byte(sampleGeoJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	if rec := serve(t, router, http.MethodGet, "/api/geojson/streets", nil); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	rec := serve(t, router, http.MethodGet, "/api/geojson/streets", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != sampleGeoJSON {
		t.Fatalf("second request should come from memory, got %d %q", rec.Code, rec.Body.String())
	}
	if stats := h.files.GetStats(); stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestGeoJSON_MissingIsNotCached(t *testing.T) {
	t.Parallel()
	router, dir := newTestRouter(t, &fakeSource{})

	if rec := serve(t, router, http.MethodGet, "/api/geojson/late", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if err := os.WriteFile(filepath.Join(dir, "late.geojson"), []byte(sampleGeoJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	if rec := serve(t, router, http.MethodGet, "/api/geojson/late", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d after the file appeared, want 200", rec.Code)
	}
}

func TestGeoJSON_NotModified(t *testing.T) {
	t.Parallel()
	router, dir := newTestRouter(t, &fakeSource{})
	if err := os.WriteFile(filepath.Join(dir, "streets.geojson"), []byte(sampleGeoJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	first := serve(t, router, http.MethodGet, "/api/geojson/streets", nil)
	etag := first.Header().Get("ETag")

	rec := serve(t, router, http.MethodGet, "/api/geojson/streets", map[string]string{"If-None-Match": etag})
	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("304 should have no body, got %q", rec.Body.String())
	}
}

func TestHealthStatus(t *testing.T) {
	t.Parallel()
	last := "2025-08-25T18:00:05Z"
	age := int64(30)

	tests := []struct {
		name   string
		status gateway.CacheStatus
		want   string
	}{
		{"no data", gateway.CacheStatus{}, HealthStarting},
		{"fresh", gateway.CacheStatus{HasData: true, LastFetch: &last, CacheAge: &age, IsFresh: true}, HealthHealthy},
		{"stale", gateway.CacheStatus{HasData: true, LastFetch: &last, CacheAge: &age, IsFresh: false}, HealthDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, &fakeSource{status: tt.status})
			rec := serve(t, router, http.MethodGet, "/health", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status code = %d, want 200", rec.Code)
			}
			var body HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.want {
				t.Errorf("status = %q, want %q", body.Status, tt.want)
			}
			if body.CacheStatus.HasData != tt.status.HasData || body.CacheStatus.IsFresh != tt.status.IsFresh {
				t.Errorf("cache_status = %+v", body.CacheStatus)
			}
		})
	}
}

func TestHealth_Shape(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t, &fakeSource{}, nil)
	start := time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)
	h.startTime = start
	h.now = func() time.Time { return start.Add(90 * time.Second) }

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"status", "cache_status", "uptime", "version", "timestamp"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing key %q in %v", key, body)
		}
	}
	cs, ok := body["cache_status"].(map[string]interface{})
	if !ok {
		t.Fatalf("cache_status is %T", body["cache_status"])
	}
	for _, key := range []string{"has_data", "last_fetch", "cache_age", "is_fresh"} {
		if _, ok := cs[key]; !ok {
			t.Errorf("missing cache_status key %q", key)
		}
	}
	if cs["last_fetch"] != nil || cs["cache_age"] != nil {
		t.Errorf("empty cache should report null last_fetch and cache_age, got %v", cs)
	}
	if body["uptime"] != float64(90) {
		t.Errorf("uptime = %v, want 90", body["uptime"])
	}
	if body["version"] != "1.2.3" {
		t.Errorf("version = %v", body["version"])
	}
	if body["timestamp"] != "2025-08-25T12:01:30Z" {
		t.Errorf("timestamp = %v", body["timestamp"])
	}
}
