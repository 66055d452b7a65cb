// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/cubetrack/internal/location"
	"github.com/tomtom215/cubetrack/internal/poller"
	"github.com/tomtom215/cubetrack/internal/websocket"
)

var (
	_ suture.Service = (*WebSocketHubService)(nil)
	_ suture.Service = (*PollerService)(nil)
	_ ContextHub     = (*websocket.Hub)(nil)
	_ StartStopper   = (*poller.Poller)(nil)
)

type fakeHub struct {
	err  error
	runs atomic.Int32
}

func (f *fakeHub) RunWithContext(ctx context.Context) error {
	f.runs.Add(1)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService_Serve(t *testing.T) {
	t.Parallel()

	t.Run("returns context error on cancel", func(t *testing.T) {
		hub := &fakeHub{}
		svc := NewWebSocketHubService(hub)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Serve() = %v, want DeadlineExceeded", err)
		}
		if hub.runs.Load() != 1 {
			t.Errorf("runs = %d", hub.runs.Load())
		}
	})

	t.Run("propagates hub errors", func(t *testing.T) {
		hubErr := errors.New("hub failed")
		if err := NewWebSocketHubService(&fakeHub{err: hubErr}).Serve(context.Background()); !errors.Is(err, hubErr) {
			t.Errorf("Serve() = %v, want %v", err, hubErr)
		}
	})

	t.Run("drives a real hub", func(t *testing.T) {
		hub := websocket.NewHub()
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- NewWebSocketHubService(hub).Serve(ctx) }()

		hub.BroadcastLocation(location.NewRecord(1, 2, ""))
		deadline := time.Now().Add(time.Second)
		for {
			if _, ok := hub.Last(); ok {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("hub did not process the broadcast")
			}
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	})
}

type fakePoller struct {
	startErr error
	starts   atomic.Int32
	stops    atomic.Int32
}

func (f *fakePoller) Start(context.Context) error {
	f.starts.Add(1)
	return f.startErr
}

func (f *fakePoller) Stop() { f.stops.Add(1) }

func TestPollerService_Serve(t *testing.T) {
	t.Parallel()

	t.Run("stops the poller on cancel", func(t *testing.T) {
		p := &fakePoller{}
		svc := NewPollerService(p)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Serve() = %v", err)
		}
		if p.starts.Load() != 1 || p.stops.Load() != 1 {
			t.Errorf("starts=%d stops=%d, want 1/1", p.starts.Load(), p.stops.Load())
		}
		if svc.String() != "poller" {
			t.Errorf("String() = %q", svc.String())
		}
	})

	t.Run("start failure is returned without stop", func(t *testing.T) {
		p := &fakePoller{startErr: poller.ErrAlreadyRunning}
		err := NewPollerService(p).Serve(context.Background())
		if !errors.Is(err, poller.ErrAlreadyRunning) {
			t.Errorf("Serve() = %v", err)
		}
		if p.stops.Load() != 0 {
			t.Error("Stop should not run when Start failed")
		}
	})

	t.Run("runs under suture", func(t *testing.T) {
		p := &fakePoller{}
		sup := suture.New("test-sup", suture.Spec{Timeout: time.Second})
		sup.Add(NewPollerService(p))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := sup.ServeBackground(ctx)
		deadline := time.Now().Add(time.Second)
		for p.starts.Load() == 0 {
			if time.Now().After(deadline) {
				t.Fatal("poller never started")
			}
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		<-errCh
		if p.stops.Load() != 1 {
			t.Errorf("stops = %d, want 1", p.stops.Load())
		}
	})
}
