// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

/*
Package backup writes point-in-time snapshots of the calendar.

A snapshot is a gzip-compressed tar archive named
calsync-<UTC timestamp>.tar.gz holding:

	sections.json   every section
	events.json     every event
	manifest.json   creation time, row counts, SHA-256 of each file

The manifest is written last, so an archive without one is incomplete.
Snapshots are engine-neutral JSON and can be replayed into either SQL
driver. Prune keeps the newest N archives.
*/
package backup
