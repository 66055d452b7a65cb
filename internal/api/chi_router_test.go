// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cubetrack/internal/location"
	"github.com/tomtom215/cubetrack/internal/middleware"
	ws "github.com/tomtom215/cubetrack/internal/websocket"
)

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{})

	rec := serve(t, router, http.MethodOptions, "/api/cube_location", map[string]string{
		"Origin":                        "https://map.example.org",
		"Access-Control-Request-Method": "GET",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "GET") {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}

func TestRouter_BareOptions(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{})

	for _, path := range []string{"/api/cube_location", "/api/geojson/streets", "/api/ws"} {
		rec := serve(t, router, http.MethodOptions, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("OPTIONS %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouter_CORSOnGet(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{rec: freshRecord()})

	rec := serve(t, router, http.MethodGet, "/api/cube_location", map[string]string{"Origin": "https://map.example.org"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{rec: freshRecord()})

	rec := serve(t, router, http.MethodGet, "/api/cube_location", map[string]string{"X-Forwarded-Proto": "https"})
	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be set behind a TLS proxy")
	}

	plain := serve(t, router, http.MethodGet, "/api/cube_location", nil)
	if plain.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set over plain HTTP")
	}
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{})

	rec := serve(t, router, http.MethodGet, "/health", map[string]string{middleware.RequestIDHeader: "probe-42"})
	if got := rec.Header().Get(middleware.RequestIDHeader); got != "probe-42" {
		t.Errorf("%s = %q, want probe-42", middleware.RequestIDHeader, got)
	}
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{})

	rec := serve(t, router, http.MethodGet, "/api/nothing_here", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeErrorRecord(t, rec); body.Error != ErrCodeNotFound {
		t.Errorf("Error = %q", body.Error)
	}

	for _, path := range []string{"/api/nothing_here", "/api/geojson", "/api/cube_location/extra"} {
		rec := serve(t, router, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}

	rec = serve(t, router, http.MethodPost, "/api/cube_location", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if body := decodeErrorRecord(t, rec); body.Error != ErrCodeMethodNotAllowed {
		t.Errorf("Error = %q", body.Error)
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{})

	serve(t, router, http.MethodGet, "/health", nil)
	rec := serve(t, router, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Error("exposition should include api_requests_total")
	}
}

func TestRouter_CompressesJSON(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeSource{rec: freshRecord()})

	rec := serve(t, router, http.MethodGet, "/api/cube_location", map[string]string{"Accept-Encoding": "gzip"})
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *ws.Hub {
	t.Helper()
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func TestRouter_WebSocketReplaysLastLocation(t *testing.T) {
	t.Parallel()
	hub := startHub(t)
	h, _ := newTestHandler(t, &fakeSource{}, hub)
	srv := httptest.NewServer(NewRouter(h, nil).SetupChi())
	t.Cleanup(srv.Close)

	hub.BroadcastLocation(location.NewRecord(40.7864, -119.2065, "2025-08-25T18:00:00Z"))
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := hub.Last(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("hub never recorded the broadcast")
		}
		time.Sleep(5 * time.Millisecond)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://map.example.org"}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer resp.Body.Close()
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg struct {
		Type string          `json:"type"`
		Data location.Record `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	if msg.Type != ws.MessageTypeLocationUpdate {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.Data.Lat == nil || *msg.Data.Lat != 40.7864 {
		t.Errorf("data = %s", data)
	}
}

func TestRouter_WebSocketRejectsMissingOrigin(t *testing.T) {
	t.Parallel()
	hub := startHub(t)
	h, _ := newTestHandler(t, &fakeSource{}, hub)
	srv := httptest.NewServer(NewRouter(h, nil).SetupChi())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("dial without Origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestWebSocket_NoHub(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t, &fakeSource{}, nil)

	rec := httptest.NewRecorder()
	h.WebSocket(rec, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t, &fakeSource{}, nil)
	h.config.Security.CORSOrigins = []string{"https://map.example.org"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"https://map.example.org", true},
		{"https://evil.example.com", false},
		{"https://map.example.org.evil.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := h.checkWebSocketOrigin(req); got != tt.want {
			t.Errorf("checkWebSocketOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
