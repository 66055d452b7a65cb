// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/cubetrack/internal/api"
	"github.com/tomtom215/cubetrack/internal/config"
	"github.com/tomtom215/cubetrack/internal/gateway"
	"github.com/tomtom215/cubetrack/internal/logging"
	"github.com/tomtom215/cubetrack/internal/metrics"
	"github.com/tomtom215/cubetrack/internal/supervisor"
	"github.com/tomtom215/cubetrack/internal/supervisor/services"
	"github.com/tomtom215/cubetrack/internal/upstream"
	ws "github.com/tomtom215/cubetrack/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("upstream", cfg.Upstream.URL).
		Dur("cache_duration", cfg.Cache.Duration).
		Str("geojson_dir", cfg.Server.GeoJSONDir).
		Str("environment", cfg.Server.Environment).
		Msg("Starting cubetrack gateway")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchLogLevel()

	fetcher := upstream.NewCircuitBreakerClient(upstream.NewClient(&cfg.Upstream))
	gw := gateway.New(fetcher, cfg.Cache.Duration)

	wsHub := ws.NewHub()
	gw.OnRefresh(wsHub.BroadcastLocation)

	files := api.NewGeoJSONCache()
	defer files.Close()

	handler := api.NewHandler(gw, wsHub, files, cfg, version)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Security)))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		Name:             "cubetrack-server",
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	go trackUptime(ctx)
	go warmCache(ctx, gw)

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	tree.LogUnstopped()
	logging.Info().Msg("Gateway stopped gracefully")
}

// warmCache primes the gateway so the first browser and the /health probe
// see data. A failure here is normal when the upstream is down.
func warmCache(ctx context.Context, gw *gateway.Gateway) {
	if _, err := gw.GetLocation(ctx); err != nil {
		logging.Warn().Err(err).Msg("Initial location fetch failed, will retry on demand")
		return
	}
	logging.Info().Msg("Initial location cached")
}

func trackUptime(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.AppUptime.Set(time.Since(start).Seconds())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watchLogLevel re-reads the config file when it changes and applies the new
// log level. Every other setting still needs a restart.
func watchLogLevel() {
	path := config.ActiveConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		next, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		logging.SetLevelString(next.Logging.Level)
		logging.Info().Str("level", next.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}
