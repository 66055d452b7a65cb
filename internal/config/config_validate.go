// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/cubetrack/internal/logging"
)

// Rate limit bounds
const (
	minRateLimitReqs   = 1
	maxRateLimitReqs   = 100000
	minRateLimitWindow = time.Second
	maxRateLimitWindow = time.Hour
)

// Validate checks the sections the given role depends on.
func (c *Config) Validate(role Role) error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}

	switch role {
	case RoleServer:
		if err := c.validateUpstream(); err != nil {
			return err
		}
		if err := c.validateServer(); err != nil {
			return err
		}
		return c.validateSecurity()
	case RoleClient:
		return c.validateClient()
	default:
		return fmt.Errorf("unknown config role %d", role)
	}
}

func (c *Config) validateUpstream() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("UPSTREAM_URL is required")
	}
	if err := validateEndpointURL(c.Upstream.URL, "UPSTREAM_URL"); err != nil {
		return err
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if c.Upstream.RateLimit <= 0 {
		return fmt.Errorf("UPSTREAM_RATE_LIMIT must be positive")
	}
	if c.Upstream.RateBurst < 1 {
		return fmt.Errorf("UPSTREAM_RATE_BURST must be at least 1")
	}
	return nil
}

// validateCache enforces duration <= stale < expired so a record the gateway
// still considers fresh is never tagged stale by the poller.
func (c *Config) validateCache() error {
	cc := c.Cache
	if cc.Duration <= 0 {
		return fmt.Errorf("CACHE_DURATION must be positive")
	}
	if cc.StaleThreshold <= 0 || cc.ExpiredThreshold <= 0 {
		return fmt.Errorf("CACHE_STALE_THRESHOLD and CACHE_EXPIRED_THRESHOLD must be positive")
	}
	if cc.Duration > cc.StaleThreshold {
		return fmt.Errorf("CACHE_DURATION (%s) must not exceed CACHE_STALE_THRESHOLD (%s)", cc.Duration, cc.StaleThreshold)
	}
	if cc.StaleThreshold >= cc.ExpiredThreshold {
		return fmt.Errorf("CACHE_STALE_THRESHOLD (%s) must be less than CACHE_EXPIRED_THRESHOLD (%s)", cc.StaleThreshold, cc.ExpiredThreshold)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.GeoJSONDir == "" {
		return fmt.Errorf("GEOJSON_DIR must not be empty")
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitReqs || c.Security.RateLimitReqs > maxRateLimitReqs {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitReqs, maxRateLimitReqs)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %s and %s", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

func (c *Config) validateClient() error {
	cc := c.Client
	if err := validateBaseURL(cc.GatewayURL, "CLIENT_GATEWAY_URL"); err != nil {
		return err
	}
	if cc.PollInterval <= 0 || cc.SlowInterval <= 0 || cc.OfflineInterval <= 0 {
		return fmt.Errorf("client poll intervals must be positive")
	}
	if cc.PollInterval > cc.SlowInterval || cc.SlowInterval > cc.OfflineInterval {
		return fmt.Errorf("client intervals must satisfy poll <= slow <= offline")
	}
	if cc.MaxRetries < 0 || cc.MaxRetries > 10 {
		return fmt.Errorf("CLIENT_MAX_RETRIES must be between 0 and 10")
	}
	if cc.RetryDelay <= 0 {
		return fmt.Errorf("CLIENT_RETRY_DELAY must be positive")
	}
	if cc.HistoryLimit < 1 {
		return fmt.Errorf("CLIENT_HISTORY_LIMIT must be at least 1")
	}
	if cc.RequestTimeout <= 0 {
		return fmt.Errorf("CLIENT_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
