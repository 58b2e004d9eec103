// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/calsync/internal/models"
	"github.com/tomtom215/calsync/internal/validation"
)

const sectionNotFound = "Section not found"

// ListSections handles GET /api/sections.
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.store.ListSections(r.Context())
	if err != nil {
		respondError(w, r, err, sectionNotFound)
		return
	}
	NewResponseWriter(w, r).Success(sections)
}

// CreateSection handles POST /api/sections.
func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	var in models.SectionInput
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, r, err, sectionNotFound)
		return
	}
	if verr := validation.ValidateStruct(&in); verr != nil {
		respondError(w, r, verr, sectionNotFound)
		return
	}

	section, err := h.store.CreateSection(r.Context(), in)
	if err != nil {
		respondError(w, r, err, sectionNotFound)
		return
	}
	logMutation(r.Context(), models.KindSectionCreated, section.ID)
	h.notify(r.Context(), models.KindSectionCreated, section)
	NewResponseWriter(w, r).Created(section)
}

// UpdateSection handles PUT /api/sections/{id} as a merge-patch.
func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, sectionNotFound)
		return
	}
	patch, err := models.DecodeSectionPatch(body)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadJSON, err), sectionNotFound)
		return
	}
	fields := patch.Fields()
	if verr := validation.ValidateStruct(&fields); verr != nil {
		respondError(w, r, verr, sectionNotFound)
		return
	}

	section, err := h.store.UpdateSection(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, err, sectionNotFound)
		return
	}
	logMutation(r.Context(), models.KindSectionUpdated, section.ID)
	h.notify(r.Context(), models.KindSectionUpdated, section)
	NewResponseWriter(w, r).Success(section)
}

// DeleteSection handles DELETE /api/sections/{id}. The section's events
// are removed in the same transaction.
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	section, cascaded, err := h.store.DeleteSection(r.Context(), id)
	if err != nil {
		respondError(w, r, err, sectionNotFound)
		return
	}
	logMutation(r.Context(), models.KindSectionDeleted, section.ID)
	h.notify(r.Context(), models.KindSectionDeleted, models.DeletedRef{ID: section.ID, Cascaded: cascaded})
	NewResponseWriter(w, r).SuccessMessage(section, "Section deleted")
}
