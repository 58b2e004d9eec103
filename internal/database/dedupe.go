// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package database

import "github.com/tomtom215/calsync/internal/models"

// dedupeKey identifies an event within one month replacement.
type dedupeKey struct {
	date       string
	title      string
	section    string
	hasSection bool
}

// EffectiveSection is the event's own section if set, else fallback.
func EffectiveSection(e models.BulkEvent, fallback *string) *string {
	if e.SectionID != nil && *e.SectionID != "" {
		return e.SectionID
	}
	if fallback != nil && *fallback != "" {
		return fallback
	}
	return nil
}

// Dedupe drops every event whose (date, title, effective section) was
// already seen earlier in events. Order is preserved and the first
// occurrence wins. The input slice is not modified.
func Dedupe(events []models.BulkEvent, fallbackSection *string) []models.BulkEvent {
	out := make([]models.BulkEvent, 0, len(events))
	seen := make(map[dedupeKey]struct{}, len(events))
	for _, e := range events {
		k := dedupeKey{date: e.Date, title: e.Title}
		if s := EffectiveSection(e, fallbackSection); s != nil {
			k.section, k.hasSection = *s, true
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
