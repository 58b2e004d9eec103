// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

/*
Package supervisor runs the server's long-lived services under a suture v4
tree with restart backoff and bounded shutdown.

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))
	err := tree.Serve(ctx)

Supervisor events (start, failure, backoff) are logged through sutureslog
into the zerolog bridge. The service wrappers live in the services
subpackage.
*/
package supervisor
