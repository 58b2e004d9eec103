// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Command server runs the Calsync calendar backend: the REST API under /api,
// the notification websocket at /ws and /api/ws, health and Prometheus
// endpoints.
//
// Configuration is layered by koanf (defaults, then config.yaml, then the
// environment):
//
//	PORT=3000 DB_DRIVER=sqlite3 DB_PATH=/data/calsync.db ./server
//	REALTIME_MODE=feed REALTIME_TOPIC=calsync.changes ./server
//
// Build with -tags nats and set NATS_URL to share notifications
// between instances over NATS. SIGINT and SIGTERM drain in-flight requests
// and close every websocket client before exit.
package main
