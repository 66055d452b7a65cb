// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package services

import (
	"context"
	"fmt"
)

// StartStopper is satisfied by *poller.Poller.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// PollerService maps the poller's Start/Stop lifecycle onto Serve. Stop
// keeps the poller's state, so a suture restart resumes with the same
// failure counters and history.
type PollerService struct {
	poller StartStopper
	name   string
}

// NewPollerService wraps p.
func NewPollerService(p StartStopper) *PollerService {
	return &PollerService{poller: p, name: "poller"}
}

// Serve starts the poller and blocks until ctx is canceled.
func (s *PollerService) Serve(ctx context.Context) error {
	if err := s.poller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	defer s.poller.Stop()

	<-ctx.Done()
	return ctx.Err()
}

func (s *PollerService) String() string {
	return s.name
}
