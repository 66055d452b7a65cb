// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Package services adapts cubetrack components to suture.Service.

  - HTTPServerService: ListenAndServe/Shutdown with a drain timeout
  - WebSocketHubService: websocket.Hub.RunWithContext
  - PollerService: poller.Poller Start/Stop

Each wrapper implements fmt.Stringer so suture events name the service.
*/
package services
