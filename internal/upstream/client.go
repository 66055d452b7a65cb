// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

// Package upstream fetches location records from the third-party API and
// classifies every failure as unreachable, bad status or malformed.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cubetrack/internal/config"
	"github.com/tomtom215/cubetrack/internal/location"
	"github.com/tomtom215/cubetrack/internal/logging"
	"github.com/tomtom215/cubetrack/internal/metrics"
)

// maxBodySize caps how much of a successful response is read.
const maxBodySize = 1 << 20

// maxErrorBodySize caps how much of an error response is kept for logs.
const maxErrorBodySize = 4 * 1024

// UserAgent is sent on every outbound request.
const UserAgent = "cubetrack/1.0"

// Fetcher returns the current upstream record.
type Fetcher interface {
	Fetch(ctx context.Context) (*location.Record, error)
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// GetJSON issues a GET to url and decodes a JSON object body into v.
// Every failure is returned as an *Error. The caller bounds the request
// through ctx and the client timeout.
func GetJSON(ctx context.Context, hc *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return &Error{Kind: KindUnreachable, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return &Error{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Kind:       KindBadStatus,
			StatusCode: resp.StatusCode,
			Body:       string(readBodyForError(resp.Body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return &Error{Kind: KindUnreachable, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if len(body) > maxBodySize {
		return &Error{Kind: KindMalformed, Err: fmt.Errorf("response exceeds %d bytes", maxBodySize)}
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '{' {
		return &Error{Kind: KindMalformed, Err: errors.New("response is not a JSON object")}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Kind: KindMalformed, Err: err}
	}
	return nil
}

// Client fetches the raw location record from the upstream API.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter replaces the request limiter. A nil limiter disables it.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient builds a client for cfg.URL.
func NewClient(cfg *config.UpstreamConfig, opts ...Option) *Client {
	c := &Client{
		url:     cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		log:     logging.WithComponent("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs one GET against the upstream API. It does not validate the
// record; that is the caller's decision.
func (c *Client) Fetch(ctx context.Context) (*location.Record, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		metrics.RecordUpstreamRequest(metrics.ResultThrottled, 0)
		return nil, &Error{Kind: KindUnreachable, Err: ErrThrottled}
	}

	start := time.Now()
	var rec location.Record
	err := GetJSON(ctx, c.http, c.url, &rec)
	duration := time.Since(start)

	if err != nil {
		kind := KindOf(err)
		metrics.RecordUpstreamRequest(kind.String(), duration)

		ev := c.log.Warn().Err(err).Str("kind", kind.String()).Dur("duration", duration)
		var ue *Error
		if errors.As(err, &ue) && ue.Kind == KindBadStatus {
			ev = ev.Int("status", ue.StatusCode).Str("body", ue.Body)
		}
		ev.Msg("Upstream fetch failed")
		return nil, err
	}

	metrics.RecordUpstreamRequest(metrics.ResultSuccess, duration)
	c.log.Debug().Dur("duration", duration).Msg("Upstream fetch succeeded")
	return &rec, nil
}
