// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

/*
Package api serves the calendar over HTTP.

Every JSON response uses the envelope

	{"success": bool, "data": ..., "error": "...", "message": "..."}

Mutations follow one order: validate the body, call the store, then
broadcast the committed record to realtime subscribers and respond. A
request that fails at any step answers with an error status and sends no
notification. Reads never broadcast.

Error status mapping:
  - validation failures and malformed JSON: 400
  - unknown ids: 404
  - unique constraint violations: 409
  - any other storage failure: 500, with the engine message in "error"

Routes are built by Router.SetupChi on go-chi/chi with go-chi/cors,
go-chi/httprate and the middleware package.
*/
package api
