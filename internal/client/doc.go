// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

/*
Package client is the consumer side of calsync.

API is a typed request client for the REST routes. Non-2xx responses
become *ServerError carrying the server's message; transport failures and
timeouts become *NetworkError. Requests pass through a token bucket
limiter and a circuit breaker that only counts transport failures.

Realtime holds the notification websocket open:

	DISCONNECTED -> CONNECTING -> CONNECTED -> DISCONNECTED -> ...

After MaxRetries consecutive failed dials or drops it moves to TERMINAL
and stops. Mirror keeps a local copy of the calendar up to date from
those notifications.

	api := client.NewAPI(client.APIConfig{BaseURL: "http://localhost:3000"})
	mirror := client.NewMirror(api)
	rt := client.NewRealtime(client.RealtimeConfig{URL: "ws://localhost:3000/ws"})
	rt.SetHandler(mirror.Handler(ctx))
	err := rt.Run(ctx)
*/
package client
