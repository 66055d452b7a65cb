// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/cubetrack/internal/config"
	"github.com/tomtom215/cubetrack/internal/location"
	"github.com/tomtom215/cubetrack/internal/logging"
	"github.com/tomtom215/cubetrack/internal/metrics"
	"github.com/tomtom215/cubetrack/internal/poller"
	"github.com/tomtom215/cubetrack/internal/store"
	"github.com/tomtom215/cubetrack/internal/supervisor"
	"github.com/tomtom215/cubetrack/internal/supervisor/services"
)

var version = "dev"

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	st, err := openStore(cfg.Client.StoreDir)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Client.StoreDir).Msg("Failed to open snapshot store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close snapshot store")
		}
	}()

	pcfg := poller.ConfigFrom(cfg)
	if path := cfg.Client.StaticFile; path != "" {
		rec, err := poller.LoadStaticRecord(path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", path).Msg("Failed to load static record")
		}
		pcfg.StaticRecord = rec
		logging.Info().Str("path", path).Msg("Static mode enabled")
	}

	p, err := poller.New(poller.NewGatewayClient(cfg.Client.GatewayURL, cfg.Client.RequestTimeout), st, pcfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create poller")
	}

	p.OnLocation(logLocation)
	p.OnStatus(func(c poller.StatusChange) {
		logging.Info().
			Str("from", string(c.From)).
			Str("to", string(c.To)).
			Int("consecutive_failures", c.State.ConsecutiveFailures).
			Dur("interval", c.State.CurrentInterval).
			Msg("Poller status changed")
	})
	p.OnError(func(e poller.PollError) {
		ev := logging.Warn()
		if e.Final {
			ev = logging.Error()
		}
		ev.Err(e.Err).Int("attempt", e.Attempt).Bool("final", e.Final).Msg("Poll failed")
	})

	logging.Info().
		Str("version", version).
		Str("gateway", cfg.Client.GatewayURL).
		Dur("poll_interval", pcfg.PollInterval).
		Msg("Starting cubetrack poller")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		Name:             "cubetrack-poller",
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddMessagingService(services.NewPollerService(p))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
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
	logging.Info().Int("history", len(p.History())).Msg("Poller stopped")
}

// openStore keeps the snapshot on disk, or in memory when dir is empty.
func openStore(dir string) (*store.BadgerStore, error) {
	if dir == "" {
		return store.OpenInMemory()
	}
	return store.Open(dir)
}

func logLocation(e location.Enriched) {
	ev := logging.Info().Bool("stale", e.Stale).Bool("cached", e.Cached)
	if e.Lat != nil && e.Lng != nil {
		ev = ev.Float64("lat", *e.Lat).Float64("lng", *e.Lng)
	}
	if e.Timestamp != "" {
		ev = ev.Str("timestamp", e.Timestamp)
	}
	ev.Msg("Location updated")
}
