// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

// Package gateway owns the server-side location cache.
//
// A single mutex covers the whole check, fetch and write sequence, so any
// number of concurrent callers cause at most one upstream request per cache
// window. When a refresh fails the previous record is served again, flagged
// stale, no matter how old it is. Only a gateway that has never held a record
// returns an error.
package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cubetrack/internal/location"
	"github.com/tomtom215/cubetrack/internal/logging"
	"github.com/tomtom215/cubetrack/internal/metrics"
	"github.com/tomtom215/cubetrack/internal/upstream"
)

// entry is published as a whole; a reader never sees data from one refresh
// paired with the timestamp of another.
type entry struct {
	data      location.Record
	fetchedAt time.Time
}

// Gateway serves the cached location record.
type Gateway struct {
	fetcher       upstream.Fetcher
	cacheDuration time.Duration
	now           func() time.Time
	log           zerolog.Logger

	// mu serializes GetLocation. It is held across the upstream call.
	mu    sync.Mutex
	entry atomic.Pointer[entry]

	hooksMu sync.RWMutex
	hooks   []func(location.Record)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// New returns a gateway that refreshes from f once cacheDuration has passed.
func New(f upstream.Fetcher, cacheDuration time.Duration, opts ...Option) *Gateway {
	g := &Gateway{
		fetcher:       f,
		cacheDuration: cacheDuration,
		now:           time.Now,
		log:           logging.WithComponent("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CacheDuration returns the refresh window.
func (g *Gateway) CacheDuration() time.Duration { return g.cacheDuration }

// OnRefresh registers fn to run after every successful refresh. Hooks run
// after the lock is released and receive their own copy of the record.
func (g *Gateway) OnRefresh(fn func(location.Record)) {
	g.hooksMu.Lock()
	g.hooks = append(g.hooks, fn)
	g.hooksMu.Unlock()
}

// GetLocation returns the cached record, refreshing it first when the cache
// window has passed. The only error is *NoDataError.
func (g *Gateway) GetLocation(ctx context.Context) (*location.Enriched, error) {
	g.mu.Lock()
	resp, refreshed, err := g.getLocked(ctx)
	g.mu.Unlock()

	if refreshed != nil {
		g.runHooks(*refreshed)
	}
	return resp, err
}

func (g *Gateway) getLocked(ctx context.Context) (*location.Enriched, *location.Record, error) {
	now := g.now()
	cur := g.entry.Load()

	if cur != nil {
		age := nonNegative(now.Sub(cur.fetchedAt))
		if age < g.cacheDuration {
			metrics.RecordCacheLookup(metrics.OutcomeHit, age, true)
			return &location.Enriched{
				Record: cur.data.Clone(),
				Annotations: location.Annotations{
					Cached:         true,
					CacheAge:       location.Seconds(age),
					CacheExpiresIn: location.Seconds(g.cacheDuration - age),
					FetchedAt:      formatTime(cur.fetchedAt),
				},
			}, nil, nil
		}
	}

	// The refresh outlives a caller that disconnects; everyone queued behind
	// the lock is waiting on this result.
	rec, err := g.fetchValid(context.WithoutCancel(ctx))
	if err == nil {
		fetchedAt := g.now()
		g.entry.Store(&entry{data: rec.Clone(), fetchedAt: fetchedAt})
		metrics.RecordCacheLookup(metrics.OutcomeRefresh, 0, true)

		logging.Ctx(ctx).Debug().Str("fetched_at", formatTime(fetchedAt)).Msg("Location cache refreshed")
		hookCopy := rec.Clone()
		return &location.Enriched{
			Record: rec,
			Annotations: location.Annotations{
				Cached:    false,
				FetchedAt: formatTime(fetchedAt),
			},
		}, &hookCopy, nil
	}

	if cur != nil {
		age := nonNegative(now.Sub(cur.fetchedAt))
		metrics.RecordCacheLookup(metrics.OutcomeStale, age, true)
		g.log.Warn().Err(err).Str("age", location.FormatAge(age)).Msg("Refresh failed, serving stale location")
		return &location.Enriched{
			Record: cur.data.Clone(),
			Annotations: location.Annotations{
				Cached:    true,
				Stale:     true,
				CacheAge:  location.Seconds(age),
				FetchedAt: formatTime(cur.fetchedAt),
				APIError:  err.Error(),
			},
		}, nil, nil
	}

	metrics.RecordCacheLookup(metrics.OutcomeError, 0, false)
	g.log.Error().Err(err).Msg("Refresh failed with no cached location")
	return nil, nil, &NoDataError{Err: err}
}

// fetchValid fetches and validates. An invalid record is a failure.
func (g *Gateway) fetchValid(ctx context.Context) (location.Record, error) {
	rec, err := g.fetcher.Fetch(ctx)
	if err != nil {
		return location.Record{}, err
	}
	if rec == nil {
		return location.Record{}, location.ErrInvalidRecord
	}
	if err := rec.Validate(); err != nil {
		g.log.Warn().Err(err).Msg("Upstream returned an invalid record")
		return location.Record{}, err
	}
	return *rec, nil
}

func (g *Gateway) runHooks(rec location.Record) {
	g.hooksMu.RLock()
	hooks := append([]func(location.Record){}, g.hooks...)
	g.hooksMu.RUnlock()

	for _, fn := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					g.log.Error().Interface("panic", r).Msg("Refresh hook panicked")
				}
			}()
			fn(rec.Clone())
		}()
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// IsNoData reports whether err means the gateway has nothing to serve.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
