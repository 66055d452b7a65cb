// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package poller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/cubetrack/internal/location"
	"github.com/tomtom215/cubetrack/internal/upstream"
)

// LocationPath is the gateway endpoint the poller reads.
const LocationPath = "/api/cube_location"

// Fetcher returns one annotated record from the gateway.
type Fetcher interface {
	Fetch(ctx context.Context) (*location.Enriched, error)
}

// GatewayClient fetches from a cubetrack gateway over HTTP. Failures carry the
// same *upstream.Error classification the gateway uses for its own upstream.
type GatewayClient struct {
	url  string
	http *http.Client
}

// NewGatewayClient targets baseURL + LocationPath.
func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		url:  strings.TrimRight(baseURL, "/") + LocationPath,
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch performs one GET. It does not validate the record.
func (c *GatewayClient) Fetch(ctx context.Context) (*location.Enriched, error) {
	var e location.Enriched
	if err := upstream.GetJSON(ctx, c.http, c.url, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
