// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Role selects which sections Validate insists on.
type Role int

const (
	// RoleServer requires a usable upstream URL.
	RoleServer Role = iota
	// RoleClient requires a usable gateway URL and poller intervals.
	RoleClient
)

// DefaultConfigPaths lists the config files searched in order. The first one
// found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cubetrack/config.yaml",
	"/etc/cubetrack/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			URL:       "",
			Timeout:   10 * time.Second,
			RateLimit: 1,
			RateBurst: 2,
		},
		Cache: CacheConfig{
			Duration:         5 * time.Minute,
			StaleThreshold:   10 * time.Minute,
			ExpiredThreshold: 24 * time.Hour,
		},
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			GeoJSONDir:  "./data/geojson",
			Environment: "development",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Client: ClientConfig{
			GatewayURL:      "http://localhost:8080",
			PollInterval:    5 * time.Minute,
			SlowInterval:    30 * time.Minute,
			OfflineInterval: 60 * time.Minute,
			MaxRetries:      3,
			RetryDelay:      5 * time.Second,
			HistoryLimit:    50,
			RequestTimeout:  15 * time.Second,
			StoreDir:        "./data/poller",
			StaticFile:      "",
		},
	}
}

// LoadWithKoanf loads configuration in three layers (defaults, optional YAML
// file, environment) and validates it for the given role.
func LoadWithKoanf(role Role) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(role); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// ActiveConfigFile returns the config file Load would read, or "" when
// configuration comes from defaults and the environment only.
func ActiveConfigFile() string {
	return findConfigFile()
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a single string.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Anything not listed is ignored so unrelated variables never leak in.
var envMappings = map[string]string{
	"upstream_url":        "upstream.url",
	"upstream_timeout":    "upstream.timeout",
	"upstream_rate_limit": "upstream.rate_limit",
	"upstream_rate_burst": "upstream.rate_burst",

	"cache_duration":          "cache.duration",
	"cache_stale_threshold":   "cache.stale_threshold",
	"cache_expired_threshold": "cache.expired_threshold",

	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"geojson_dir":  "server.geojson_dir",
	"environment":  "server.environment",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"client_gateway_url":      "client.gateway_url",
	"client_poll_interval":    "client.poll_interval",
	"client_slow_interval":    "client.slow_interval",
	"client_offline_interval": "client.offline_interval",
	"client_max_retries":      "client.max_retries",
	"client_retry_delay":      "client.retry_delay",
	"client_history_limit":    "client.history_limit",
	"client_request_timeout":  "client.request_timeout",
	"client_store_dir":        "client.store_dir",
	"client_static_file":      "client.static_file",
}

// envTransformFunc maps e.g. CACHE_DURATION to cache.duration. Unmapped keys
// return "" which koanf skips.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile invokes callback whenever the file changes. Callers must
// reload with LoadWithKoanf and swap the config under their own lock.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
