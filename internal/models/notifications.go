// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package models

// Realtime notification kinds. Each committed mutation produces exactly
// one notification carrying the payload noted beside its kind.
const (
	KindSectionCreated   = "section_created"    // Section
	KindSectionUpdated   = "section_updated"    // Section
	KindSectionDeleted   = "section_deleted"    // DeletedRef
	KindEventCreated     = "event_created"      // Event
	KindEventUpdated     = "event_updated"      // Event
	KindEventDeleted     = "event_deleted"      // DeletedRef
	KindEventsBulkUpdate = "events_bulk_update" // BulkUpdate
)

// ChangeKinds lists every notification kind.
var ChangeKinds = []string{
	KindSectionCreated,
	KindSectionUpdated,
	KindSectionDeleted,
	KindEventCreated,
	KindEventUpdated,
	KindEventDeleted,
	KindEventsBulkUpdate,
}

// DeletedRef identifies a removed record.
type DeletedRef struct {
	ID string `json:"id"`
	// Cascaded is the number of events removed along with a section.
	Cascaded int64 `json:"cascaded,omitempty"`
}

// BulkUpdate tells clients to refetch a month.
type BulkUpdate struct {
	Month     string  `json:"month"`
	SectionID *string `json:"section_id,omitempty"`
	Count     int     `json:"count"`
}
