// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package upstream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cubetrack/internal/location"
)

type fakeFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeFetcher) Fetch(context.Context) (*location.Record, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	r := location.NewRecord(40.78, -119.2, "")
	return &r, nil
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	inner := &fakeFetcher{err: &Error{Kind: KindBadStatus, StatusCode: 502}}
	cbc := NewCircuitBreakerClient(inner)

	if cbc.State() != "closed" {
		t.Fatalf("initial state = %s, want closed", cbc.State())
	}

	for i := 0; i < breakerMinRequests; i++ {
		if _, err := cbc.Fetch(context.Background()); !errors.Is(err, ErrBadStatus) {
			t.Fatalf("Fetch() #%d error = %v", i, err)
		}
	}
	if cbc.State() != "open" {
		t.Fatalf("state = %s, want open after %d failures", cbc.State(), breakerMinRequests)
	}

	_, err := cbc.Fetch(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("open circuit should read as unreachable, got %v", err)
	}
	if got := inner.calls.Load(); got != breakerMinRequests {
		t.Errorf("inner calls = %d, want %d", got, breakerMinRequests)
	}
}

func TestCircuitBreaker_StaysClosedBelowThreshold(t *testing.T) {
	inner := &fakeFetcher{}
	cbc := NewCircuitBreakerClient(inner)

	// 2 failures out of 5 is 40%.
	for i := 0; i < 5; i++ {
		if i < 2 {
			inner.err = &Error{Kind: KindUnreachable}
		} else {
			inner.err = nil
		}
		_, _ = cbc.Fetch(context.Background())
	}
	if cbc.State() != "closed" {
		t.Errorf("state = %s, want closed", cbc.State())
	}
}

func TestCircuitBreaker_ThrottlingIsNotFailure(t *testing.T) {
	inner := &fakeFetcher{err: &Error{Kind: KindUnreachable, Err: ErrThrottled}}
	cbc := NewCircuitBreakerClient(inner)

	for i := 0; i < breakerMinRequests*2; i++ {
		_, _ = cbc.Fetch(context.Background())
	}
	if cbc.State() != "closed" {
		t.Errorf("state = %s, want closed", cbc.State())
	}
}

func TestCircuitBreaker_PassesRecordThrough(t *testing.T) {
	cbc := NewCircuitBreakerClient(&fakeFetcher{})
	rec, err := cbc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if rec == nil || *rec.Lat != 40.78 {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestStateHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		str   string
		val   float64
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
	}
	for _, tt := range tests {
		if got := stateToString(tt.state); got != tt.str {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.str)
		}
		if got := stateToFloat(tt.state); got != tt.val {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.val)
		}
	}
}
