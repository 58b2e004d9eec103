// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

/*
Package websocket fans committed calendar changes out to connected viewers.

The Hub owns the set of live connections. It is created by the caller and
passed to whoever needs it; there is no package-level hub.

	┌──────────┐
	│   Hub    │ ← Broadcast(ctx, kind, data)
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│ Client1  │ Client2 │ Client3 │
	└──────────┴─────────┴─────────┘

Every message is encoded once per broadcast and queued on each client's
buffered send channel. A client whose queue is full is removed, so one slow
viewer never delays the others or the request that caused the change. Each
client runs a read pump (deadline refresh, application ping) and a write
pump (queue drain, protocol ping).

Frames have the shape {"type": kind, "data": payload} where kind is one of
section_created, section_updated, section_deleted, event_created,
event_updated, event_deleted or events_bulk_update.
*/
package websocket
