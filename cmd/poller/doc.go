// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

/*
Command poller is the headless adaptive client.

It polls the gateway's /api/cube_location, slows down as failures
accumulate (5m online, 30m degraded, 60m offline by default), keeps a
bounded history and persists a snapshot so a restart resumes with the last
known location. Each published location and status change is logged.

	export CLIENT_GATEWAY_URL=http://gateway.local:8080
	export CLIENT_STORE_DIR=/var/lib/cubetrack/poller
	./poller

Set CLIENT_STATIC_FILE to a JSON record to serve that record without
polling, for example while the installation is in storage.
*/
package main
