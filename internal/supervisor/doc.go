// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Package supervisor runs cubetrack's long-lived components under suture v4.

The gateway server builds:

	cubetrack-server
	├── messaging-layer
	│   └── websocket-hub
	└── api-layer
	    └── http-server

The headless poller builds:

	cubetrack-poller
	├── messaging-layer
	│   └── poller
	└── api-layer (empty)

Crashed services restart with suture's backoff. Supervisor events are
logged through sutureslog, fed by logging.NewSlogLogger so they land in
the same zerolog stream as everything else.

Usage:

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{Name: "cubetrack-server"})
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err := tree.Serve(ctx)
	tree.LogUnstopped()

Service wrappers live in the services subpackage.
*/
package supervisor
