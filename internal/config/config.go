// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

// Package config loads cubetrack configuration from defaults, an optional
// YAML file and environment variables (highest priority).
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds every setting for both binaries. The gateway server reads
// Upstream, Cache, Server, Security and Logging; the headless poller reads
// Client, Cache and Logging.
type Config struct {
	Upstream UpstreamConfig `koanf:"upstream"`
	Cache    CacheConfig    `koanf:"cache"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Client   ClientConfig   `koanf:"client"`
}

// UpstreamConfig describes the third-party location API.
//
// Environment Variables:
//   - UPSTREAM_URL: full URL of the location endpoint (required for the server)
//   - UPSTREAM_TIMEOUT: per-request timeout (default: 10s)
//   - UPSTREAM_RATE_LIMIT: max requests per second sent upstream (default: 1)
//   - UPSTREAM_RATE_BURST: burst allowance (default: 2)
type UpstreamConfig struct {
	URL       string        `koanf:"url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	RateBurst int           `koanf:"rate_burst"`
}

// CacheConfig holds the freshness policy shared by server and client.
//
// Environment Variables:
//   - CACHE_DURATION: how long the gateway serves a record without refreshing (default: 5m)
//   - CACHE_STALE_THRESHOLD: age after which a record is tagged stale (default: 10m)
//   - CACHE_EXPIRED_THRESHOLD: age after which a record or snapshot is unusable (default: 24h)
type CacheConfig struct {
	Duration         time.Duration `koanf:"duration"`
	StaleThreshold   time.Duration `koanf:"stale_threshold"`
	ExpiredThreshold time.Duration `koanf:"expired_threshold"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: listen port (default: 8080)
//   - HTTP_HOST: listen address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: read/write timeout (default: 30s)
//   - GEOJSON_DIR: directory holding <dataset>.geojson files (default: ./data/geojson)
//   - ENVIRONMENT: development or production (default: development)
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	GeoJSONDir  string        `koanf:"geojson_dir"`
	Environment string        `koanf:"environment"`
}

// SecurityConfig holds CORS and rate limiting settings. The mirror is
// read-only and unauthenticated, so there is nothing else here.
//
// Environment Variables:
//   - CORS_ORIGINS: comma separated allowed origins (default: *)
//   - RATE_LIMIT_REQUESTS: requests per window per IP (default: 300)
//   - RATE_LIMIT_WINDOW: window length (default: 1m)
//   - DISABLE_RATE_LIMIT: turn the limiter off (default: false)
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ClientConfig configures the adaptive poller binary.
//
// Environment Variables:
//   - CLIENT_GATEWAY_URL: base URL of the gateway (default: http://localhost:8080)
//   - CLIENT_POLL_INTERVAL: normal polling interval (default: 5m)
//   - CLIENT_SLOW_INTERVAL: interval while degraded (default: 30m)
//   - CLIENT_OFFLINE_INTERVAL: interval while offline (default: 60m)
//   - CLIENT_MAX_RETRIES: retries per cycle (default: 3)
//   - CLIENT_RETRY_DELAY: first backoff delay, doubled per retry (default: 5s)
//   - CLIENT_HISTORY_LIMIT: history entries kept in the snapshot (default: 50)
//   - CLIENT_STORE_DIR: badger directory for the snapshot; empty keeps it in memory (default: ./data/poller)
//   - CLIENT_STATIC_FILE: JSON record to inject instead of polling (default: none)
type ClientConfig struct {
	GatewayURL      string        `koanf:"gateway_url"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	SlowInterval    time.Duration `koanf:"slow_interval"`
	OfflineInterval time.Duration `koanf:"offline_interval"`
	MaxRetries      int           `koanf:"max_retries"`
	RetryDelay      time.Duration `koanf:"retry_delay"`
	HistoryLimit    int           `koanf:"history_limit"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	StoreDir        string        `koanf:"store_dir"`
	StaticFile      string        `koanf:"static_file"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Load reads and validates the gateway server configuration.
func Load() (*Config, error) {
	return LoadWithKoanf(RoleServer)
}

// LoadClient reads and validates the poller configuration.
func LoadClient() (*Config, error) {
	return LoadWithKoanf(RoleClient)
}
