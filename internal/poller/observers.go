// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package poller

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cubetrack/internal/metrics"
)

// Subscription is returned by every On* registration.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the callback. Calling it again does nothing.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// registry is an ordered callback list. Callbacks run outside the lock and a
// panic in one never reaches the others.
type registry[T any] struct {
	name   string
	log    *zerolog.Logger
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

func newRegistry[T any](name string, log *zerolog.Logger) *registry[T] {
	return &registry[T]{name: name, log: log}
}

func (r *registry[T]) add(fn func(T)) *Subscription {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscriber[T]{id: id, fn: fn})
	r.mu.Unlock()

	return &Subscription{cancel: func() { r.remove(id) }}
}

func (r *registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// emit calls every callback with the value produced by arg. arg is invoked
// once per callback so each one can get its own copy.
func (r *registry[T]) emit(arg func() T) {
	r.mu.Lock()
	subs := make([]subscriber[T], len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		r.call(s, arg())
	}
}

func (r *registry[T]) call(s subscriber[T], v T) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.PollerCallbackPanics.WithLabelValues(r.name).Inc()
			r.log.Error().Interface("panic", rec).Str("registry", r.name).Uint64("subscriber", s.id).Msg("Poller callback panicked")
		}
	}()
	s.fn(v)
}
