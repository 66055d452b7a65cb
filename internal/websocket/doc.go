// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Package websocket pushes location updates to connected map clients.

Browsers that keep a map open can subscribe to /api/ws instead of polling
/api/cube_location. The gateway calls Hub.BroadcastLocation whenever it
fetches a fresh record from upstream; cache hits and stale fallbacks are not
broadcast.

Key Components:

  - Hub: owns the client set and fans out messages
  - Client: one viewer connection, receive only
  - Message: {"type": ..., "data": ...} envelope

Each client has two goroutines:
  - push: writes the pending location and sends protocol pings
  - drain: discards inbound frames and enforces the pong deadline

The only message type is location_update, carrying the record as data:
{"type": "location_update", "data": {"lat": ...}}. The latest one is
replayed to every client as soon as it registers.

Usage Example:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)
	gw.OnRefresh(hub.BroadcastLocation)

	conn, _ := upgrader.Upgrade(w, r, nil)
	client := websocket.NewClient(hub, conn)
	hub.Register <- client
	client.Start()

A client holds at most one unwritten location. A newer broadcast replaces
it, so a slow viewer jumps to the current position and never stalls the hub.
*/
package websocket
