// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

/*
Package middleware provides the request id, access log and Prometheus
middleware used by the API router.

All middleware has the chi signature func(http.Handler) http.Handler and
wraps the response with chi's WrapResponseWriter, which keeps
http.Hijacker available for websocket upgrades.

Typical order:

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
