// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tomtom215/calsync/internal/cache"
	"github.com/tomtom215/calsync/internal/models"
)

const (
	uncategorizedID   = "uncategorized"
	uncategorizedName = "Uncategorized"
	icsProductID      = "-//calsync//Shared Calendar//EN"
)

// ExportMonth handles GET /api/discord/export/{month}: the month's events
// grouped by section for posting downstream.
//
// The groups are an ordered array inside the envelope's data:
//
//	{"success": true, "data": {"month": "MARCH", "sections": [{"section_id": ..., "events": [...]}]}}
//
// Earlier deployments answered with a top-level month and data keyed by
// section id ({"month": ..., "data": {"<section_id>": {...}}}); posters
// written against that shape must read data.sections instead.
func (h *Handler) ExportMonth(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r, "month")
	if !ok {
		return
	}
	filter := models.EventFilter{Month: month, SectionID: sectionQuery(r)}
	export, err := h.cachedView(cache.Key("export", month, filter.SectionID), func() (interface{}, error) {
		events, err := h.store.ListEvents(r.Context(), filter)
		if err != nil {
			return nil, err
		}
		sections, err := h.store.ListSections(r.Context())
		if err != nil {
			return nil, err
		}
		return BuildMonthExport(month, events, sections), nil
	})
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	NewResponseWriter(w, r).Success(export)
}

// BuildMonthExport groups date-sorted events by section. Groups appear in
// the order their first event appears; events without a section land in
// "uncategorized".
func BuildMonthExport(month string, events []models.Event, sections []models.Section) models.MonthExport {
	byID := make(map[string]models.Section, len(sections))
	for _, s := range sections {
		byID[s.ID] = s
	}

	export := models.MonthExport{Month: month, Sections: make([]models.ExportGroup, 0)}
	index := make(map[string]int)
	for _, e := range events {
		key := uncategorizedID
		if e.SectionID != nil {
			key = *e.SectionID
		}
		i, seen := index[key]
		if !seen {
			group := models.ExportGroup{
				SectionID:    key,
				SectionName:  uncategorizedName,
				SectionColor: models.DefaultColor,
			}
			if s, ok := byID[key]; ok {
				group.SectionName = s.Name
				group.SectionColor = s.Color
				group.DiscordChannelID = s.DiscordChannelID
			}
			export.Sections = append(export.Sections, group)
			i = len(export.Sections) - 1
			index[key] = i
		}
		export.Sections[i].Events = append(export.Sections[i].Events, models.ExportEvent{
			Date:  e.Date,
			Title: e.Title,
			Color: e.Color,
		})
	}
	return export
}

// CalendarView handles GET /api/calendar/{month}.
func (h *Handler) CalendarView(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r, "month")
	if !ok {
		return
	}
	filter := models.EventFilter{Month: month, SectionID: sectionQuery(r)}
	view, err := h.cachedView(cache.Key("calendar", month, filter.SectionID), func() (interface{}, error) {
		events, err := h.store.ListEvents(r.Context(), filter)
		if err != nil {
			return nil, err
		}
		return BuildCalendarView(month, events), nil
	})
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	NewResponseWriter(w, r).Success(view)
}

// cachedView serves key from the view cache, building and storing it on a
// miss. Without a cache it always builds.
func (h *Handler) cachedView(key string, build func() (interface{}, error)) (interface{}, error) {
	if h.views == nil {
		return build()
	}
	gen := h.views.Generation()
	if v, ok := h.views.Get(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return nil, err
	}
	h.views.SetIfGeneration(key, v, gen)
	return v, nil
}

// BuildCalendarView buckets events by date.
func BuildCalendarView(month string, events []models.Event) models.CalendarView {
	view := models.CalendarView{Name: month, Events: make(map[string][]models.CalendarEntry)}
	for _, e := range events {
		view.Events[e.Date] = append(view.Events[e.Date], models.CalendarEntry{
			ID:           e.ID,
			Title:        e.Title,
			Color:        e.Color,
			SectionID:    e.SectionID,
			SectionName:  e.SectionName,
			SectionColor: e.SectionColor,
		})
	}
	return view
}

// CalendarICS handles GET /api/calendar/{month}/ics, returning the month
// as an iCalendar feed of all-day events.
func (h *Handler) CalendarICS(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r, "month")
	if !ok {
		return
	}
	events, err := h.store.ListEvents(r.Context(), models.EventFilter{Month: month, SectionID: sectionQuery(r)})
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}

	body, err := EncodeICS(month, events, time.Now().UTC())
	if err != nil {
		respondError(w, r, err, eventNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, strings.ToLower(month)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// EncodeICS renders events as a VCALENDAR. Events with unparsable dates
// are skipped.
func EncodeICS(month string, events []models.Event, stamp time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)
	cal.Props.SetText(ical.PropName, month)

	for _, e := range events {
		day, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			continue
		}
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, e.ID)
		event.Props.SetText(ical.PropSummary, e.Title)
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDate(ical.PropDateTimeStart, day)
		event.Props.SetDate(ical.PropDateTimeEnd, day.AddDate(0, 0, 1))
		event.Props.SetText(ical.PropColor, e.Color)
		if e.SectionName != nil {
			event.Props.SetText(ical.PropCategories, *e.SectionName)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}
