// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

/*
Package services adapts Calsync components to suture's Serve(ctx) model.

	HTTPServerService     *http.Server         ListenAndServe / Shutdown
	HubService            *websocket.Hub       RunWithContext
	MaintenanceService    *maintenance.Scheduler  Start / Stop

The changefeed publisher and forwarder already implement Serve and String
and are added to the tree directly.

Every wrapper returns ctx.Err() after a clean shutdown and a wrapped error
when the component fails, which suture treats as a restart.
*/
package services
