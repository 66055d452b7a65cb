// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package poller

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cubetrack/internal/metrics"
)

func TestRegistry_PanicCountsAndContinues(t *testing.T) {
	log := zerolog.Nop()
	r := newRegistry[int]("test", &log)

	var got []int
	r.add(func(v int) { got = append(got, v) })
	r.add(func(int) { panic("boom") })
	r.add(func(v int) { got = append(got, v*10) })

	before := testutil.ToFloat64(metrics.PollerCallbackPanics.WithLabelValues("test"))
	r.emit(func() int { return 7 })

	if len(got) != 2 || got[0] != 7 || got[1] != 70 {
		t.Errorf("got %v, want [7 70]", got)
	}
	if after := testutil.ToFloat64(metrics.PollerCallbackPanics.WithLabelValues("test")); after != before+1 {
		t.Errorf("panic counter = %v, want %v", after, before+1)
	}
}

func TestRegistry_UnsubscribeDuringEmit(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()
	r := newRegistry[int]("unsub", &log)

	calls := 0
	var sub *Subscription
	sub = r.add(func(int) {
		calls++
		sub.Unsubscribe()
	})
	r.add(func(int) { calls++ })

	r.emit(func() int { return 1 })
	r.emit(func() int { return 1 })

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if r.len() != 1 {
		t.Errorf("len = %d, want 1", r.len())
	}

	var nilSub *Subscription
	nilSub.Unsubscribe()
}
