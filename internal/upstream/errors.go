// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindUnreachable covers connection failures, timeouts, throttling and an
	// open circuit.
	KindUnreachable Kind = iota + 1
	// KindBadStatus is any non-2xx response.
	KindBadStatus
	// KindMalformed is a 2xx whose body is not a JSON object.
	KindMalformed
)

// Sentinels for errors.Is. Every *Error matches exactly one of them.
var (
	ErrUnreachable = errors.New("upstream unreachable")
	ErrBadStatus   = errors.New("upstream returned an error status")
	ErrMalformed   = errors.New("upstream returned a malformed response")

	// ErrThrottled is wrapped by a KindUnreachable error when the local rate
	// limiter refuses a request.
	ErrThrottled = errors.New("upstream request throttled")
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindBadStatus:
		return "bad_status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnreachable:
		return ErrUnreachable
	case KindBadStatus:
		return ErrBadStatus
	case KindMalformed:
		return ErrMalformed
	default:
		return nil
	}
}

// Error is a classified upstream failure.
type Error struct {
	Kind       Kind
	StatusCode int    // set for KindBadStatus
	Body       string // truncated response body for KindBadStatus
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindBadStatus:
		return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
	case KindUnreachable, KindMalformed:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind.sentinel(), e.Err)
		}
		return e.Kind.sentinel().Error()
	default:
		return fmt.Sprintf("upstream error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return 0
}
