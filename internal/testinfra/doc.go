// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Package testinfra starts Docker containers for integration tests.
//
// Everything here is behind the integration build tag. The NATS broker
// backs the changefeed tests, which additionally need the nats tag:
//
//	go test -tags "integration nats" ./internal/changefeed/...
//
//	func TestCrossInstance(t *testing.T) {
//	    broker := testinfra.StartNATS(t)
//	    feed, err := changefeed.New(&config.RealtimeConfig{NATSURL: broker.URL, Topic: "calsync.changes"})
//	    ...
//	}
//
// Tests skip when no Docker daemon is reachable.
package testinfra
