// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/calsync/internal/database"
	"github.com/tomtom215/calsync/internal/models"
	"github.com/tomtom215/calsync/internal/validation"
)

const eventNotFound = "Event not found"

// ListEvents handles GET /api/events with an optional ?section_id=.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.Context(), models.EventFilter{SectionID: sectionQuery(r)})
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	NewResponseWriter(w, r).Success(events)
}

// ListEventsByMonth handles GET /api/events/{id} where the segment is a
// month name in any case.
func (h *Handler) ListEventsByMonth(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r, "id")
	if !ok {
		return
	}
	events, err := h.store.ListEvents(r.Context(), models.EventFilter{Month: month, SectionID: sectionQuery(r)})
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	NewResponseWriter(w, r).Success(events)
}

// CreateEvent handles POST /api/events.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in models.EventInput
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	in.Normalize()
	if verr := validation.ValidateStruct(&in); verr != nil {
		respondError(w, r, verr, eventNotFound)
		return
	}

	event, err := h.store.CreateEvent(r.Context(), in)
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	logMutation(r.Context(), models.KindEventCreated, event.ID)
	h.notify(r.Context(), models.KindEventCreated, event)
	NewResponseWriter(w, r).Created(event)
}

// UpdateEvent handles PUT /api/events/{id} as a merge-patch.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	patch, err := models.DecodeEventPatch(body)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadJSON, err), eventNotFound)
		return
	}
	fields := patch.Fields()
	if verr := validation.ValidateStruct(&fields); verr != nil {
		respondError(w, r, verr, eventNotFound)
		return
	}

	event, err := h.store.UpdateEvent(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	logMutation(r.Context(), models.KindEventUpdated, event.ID)
	h.notify(r.Context(), models.KindEventUpdated, event)
	NewResponseWriter(w, r).Success(event)
}

// DeleteEvent handles DELETE /api/events/{id}.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, err := h.store.DeleteEvent(r.Context(), id)
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	logMutation(r.Context(), models.KindEventDeleted, event.ID)
	h.notify(r.Context(), models.KindEventDeleted, models.DeletedRef{ID: event.ID})
	NewResponseWriter(w, r).SuccessMessage(event, "Event deleted")
}

// BulkReplace handles POST /api/events/bulk. The request's events become
// the month's entire contents, or the section's part of it when
// section_id is set.
func (h *Handler) BulkReplace(w http.ResponseWriter, r *http.Request) {
	var req models.BulkReplaceRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, err, sectionNotFound)
		return
	}
	if req.Events == nil {
		respondError(w, r, &database.ValidationError{Field: "events", Message: "events must be an array"}, sectionNotFound)
		return
	}
	req.Normalize()
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr, sectionNotFound)
		return
	}

	count, err := h.store.BulkReplaceMonth(r.Context(), req.Month, req.Events, req.SectionID)
	if err != nil {
		respondError(w, r, err, sectionNotFound)
		return
	}

	update := models.BulkUpdate{
		Month:     models.NormalizeMonth(req.Month),
		SectionID: req.SectionID,
		Count:     count,
	}
	logMutation(r.Context(), models.KindEventsBulkUpdate, update.Month)
	h.notify(r.Context(), models.KindEventsBulkUpdate, update)
	NewResponseWriter(w, r).SuccessMessage(update, "Events saved successfully")
}

// monthParam reads a month path segment, writing 400 when it is not an
// English month name.
func monthParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	month := chi.URLParam(r, name)
	if !models.IsMonth(month) {
		respondError(w, r, &database.ValidationError{
			Field:   "month",
			Message: fmt.Sprintf("invalid month %q", month),
		}, eventNotFound)
		return "", false
	}
	return models.NormalizeMonth(month), true
}
