// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/calsync/internal/database"
	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/validation"
)

// errBadJSON marks a body that could not be decoded.
var errBadJSON = errors.New("invalid JSON body")

// statusFor maps a gateway or validation error to an HTTP status.
func statusFor(err error) int {
	var (
		rve *validation.RequestValidationError
		dve *database.ValidationError
		se  *database.StorageError
	)
	switch {
	case errors.Is(err, errBadJSON), errors.As(err, &rve), errors.As(err, &dve):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &se) && se.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the text placed in the envelope's error field.
// Storage failures surface the engine message unchanged.
func messageFor(err error, notFound string) string {
	var (
		rve *validation.RequestValidationError
		dve *database.ValidationError
		se  *database.StorageError
	)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return notFound
	case errors.As(err, &rve):
		return rve.Error()
	case errors.As(err, &dve):
		return dve.Message
	case errors.As(err, &se):
		return se.Err.Error()
	default:
		return err.Error()
	}
}

// respondError logs and writes err. notFound names the missing resource.
func respondError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	status := statusFor(err)
	logger := logging.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	NewResponseWriter(w, r).Error(status, messageFor(err, notFound))
}
