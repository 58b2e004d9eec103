// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Package models holds the calendar records, request payloads and realtime
// notification payloads shared by the store, the HTTP API and the client.
package models

import (
	"strings"
	"time"
)

// DefaultColor is applied to events and sections created without a color.
const DefaultColor = "#5865F2"

// Section is a named category that partitions events, typically one per
// downstream posting channel.
type Section struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Color            string    `json:"color"`
	DiscordChannelID *string   `json:"discord_channel_id"`
	Enabled          bool      `json:"enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Event is a single dated calendar entry. Month is stored alongside Date
// and is always the uppercase English month name.
//
// SectionName and SectionColor are read-side joins and are never written.
type Event struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Title        string    `json:"title"`
	Color        string    `json:"color"`
	Month        string    `json:"month"`
	SectionID    *string   `json:"section_id"`
	SectionName  *string   `json:"section_name,omitempty"`
	SectionColor *string   `json:"section_color,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SectionInput is the body of POST /api/sections.
type SectionInput struct {
	Name             string  `json:"name" validate:"required,max=100"`
	Color            string  `json:"color,omitempty" validate:"omitempty,hexcolor"`
	DiscordChannelID *string `json:"discord_channel_id,omitempty" validate:"omitempty,max=64"`
	Enabled          *bool   `json:"enabled,omitempty"`
}

// EventInput is the body of POST /api/events.
type EventInput struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Title     string  `json:"title" validate:"required,max=500"`
	Color     string  `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Month     string  `json:"month" validate:"required,calmonth"`
	SectionID *string `json:"section_id,omitempty" validate:"omitempty,uuid"`
}

// Normalize treats a blank section id as no section.
func (in *EventInput) Normalize() {
	in.SectionID = NilIfBlank(in.SectionID)
}

// BulkEvent is one entry of a month replacement batch. Month comes from
// the enclosing request.
type BulkEvent struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Title     string  `json:"title" validate:"required,max=500"`
	Color     string  `json:"color,omitempty" validate:"omitempty,hexcolor"`
	SectionID *string `json:"section_id,omitempty" validate:"omitempty,uuid"`
}

// BulkReplaceRequest is the body of POST /api/events/bulk.
type BulkReplaceRequest struct {
	Month     string      `json:"month" validate:"required,calmonth"`
	Events    []BulkEvent `json:"events" validate:"required,dive"`
	SectionID *string     `json:"section_id,omitempty" validate:"omitempty,uuid"`
}

// Normalize treats blank section ids, on the request and on each event,
// as no section.
func (r *BulkReplaceRequest) Normalize() {
	r.SectionID = NilIfBlank(r.SectionID)
	for i := range r.Events {
		r.Events[i].SectionID = NilIfBlank(r.Events[i].SectionID)
	}
}

// NilIfBlank returns nil for a nil, empty or whitespace-only id. Forms
// post "" for an unselected section.
func NilIfBlank(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return id
}

// EventFilter narrows ListEvents. Zero values mean "no filter".
type EventFilter struct {
	Month     string
	SectionID string
}

// CalendarEntry is one event inside a CalendarView day bucket.
type CalendarEntry struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Color        string  `json:"color"`
	SectionID    *string `json:"section_id"`
	SectionName  *string `json:"section_name"`
	SectionColor *string `json:"section_color"`
}

// CalendarView is a month of events keyed by YYYY-MM-DD.
type CalendarView struct {
	Name   string                     `json:"name"`
	Events map[string][]CalendarEntry `json:"events"`
}

// ExportEvent is the trimmed event shape posted downstream.
type ExportEvent struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	Color string `json:"color"`
}

// ExportGroup collects one section's events for a month.
type ExportGroup struct {
	SectionID        string        `json:"section_id"`
	SectionName      string        `json:"section_name"`
	SectionColor     string        `json:"section_color"`
	DiscordChannelID *string       `json:"discord_channel_id"`
	Events           []ExportEvent `json:"events"`
}

// MonthExport is the payload of GET /api/discord/export/{month}.
type MonthExport struct {
	Month    string        `json:"month"`
	Sections []ExportGroup `json:"sections"`
}

// SeedResult lists what one seeding run inserted. Months holds one entry
// per month that received sample events, in seed order.
type SeedResult struct {
	Sections []Section
	Months   []BulkUpdate
}

// Empty reports whether the run inserted nothing.
func (r SeedResult) Empty() bool {
	return len(r.Sections) == 0 && len(r.Months) == 0
}

// StoreStats is a point-in-time row count snapshot.
type StoreStats struct {
	Sections int64 `json:"sections"`
	Events   int64 `json:"events"`
}
