// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package client

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/models"
)

// Fetcher is the read side of API used by Mirror.
type Fetcher interface {
	ListSections(ctx context.Context) ([]models.Section, error)
	ListEvents(ctx context.Context, sectionID string) ([]models.Event, error)
	ListEventsByMonth(ctx context.Context, month string) ([]models.Event, error)
}

// Mirror is a local copy of the server's sections and events. Load pulls
// a full snapshot; Apply folds in pushed notifications by id.
type Mirror struct {
	fetch Fetcher

	mu       sync.RWMutex
	sections map[string]models.Section
	events   map[string]models.Event
}

// NewMirror creates an empty mirror.
func NewMirror(fetch Fetcher) *Mirror {
	return &Mirror{
		fetch:    fetch,
		sections: make(map[string]models.Section),
		events:   make(map[string]models.Event),
	}
}

// Load replaces the mirror with a fresh snapshot.
func (m *Mirror) Load(ctx context.Context) error {
	sections, err := m.fetch.ListSections(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sections: %w", err)
	}
	events, err := m.fetch.ListEvents(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections = make(map[string]models.Section, len(sections))
	for _, s := range sections {
		m.sections[s.ID] = s
	}
	m.events = make(map[string]models.Event, len(events))
	for _, e := range events {
		m.events[e.ID] = e
	}
	return nil
}

// Apply folds one notification into the mirror. A bulk update refetches
// the month from the server.
func (m *Mirror) Apply(ctx context.Context, n Notification) error {
	switch n.Type {
	case models.KindSectionCreated, models.KindSectionUpdated:
		var s models.Section
		if err := json.Unmarshal(n.Data, &s); err != nil {
			return fmt.Errorf("decode %s: %w", n.Type, err)
		}
		m.mu.Lock()
		m.sections[s.ID] = s
		// Event records carry the section's name and color joined in.
		for id, e := range m.events {
			if e.SectionID != nil && *e.SectionID == s.ID {
				name, color := s.Name, s.Color
				e.SectionName, e.SectionColor = &name, &color
				m.events[id] = e
			}
		}
		m.mu.Unlock()

	case models.KindSectionDeleted:
		var ref models.DeletedRef
		if err := json.Unmarshal(n.Data, &ref); err != nil {
			return fmt.Errorf("decode %s: %w", n.Type, err)
		}
		m.mu.Lock()
		delete(m.sections, ref.ID)
		for id, e := range m.events {
			if e.SectionID != nil && *e.SectionID == ref.ID {
				delete(m.events, id)
			}
		}
		m.mu.Unlock()

	case models.KindEventCreated, models.KindEventUpdated:
		var e models.Event
		if err := json.Unmarshal(n.Data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", n.Type, err)
		}
		m.mu.Lock()
		m.events[e.ID] = e
		m.mu.Unlock()

	case models.KindEventDeleted:
		var ref models.DeletedRef
		if err := json.Unmarshal(n.Data, &ref); err != nil {
			return fmt.Errorf("decode %s: %w", n.Type, err)
		}
		m.mu.Lock()
		delete(m.events, ref.ID)
		m.mu.Unlock()

	case models.KindEventsBulkUpdate:
		var update models.BulkUpdate
		if err := json.Unmarshal(n.Data, &update); err != nil {
			return fmt.Errorf("decode %s: %w", n.Type, err)
		}
		return m.refetchMonth(ctx, update.Month)

	default:
		logging.Debug().Str("type", n.Type).Msg("Ignoring unknown notification")
	}
	return nil
}

func (m *Mirror) refetchMonth(ctx context.Context, month string) error {
	month = models.NormalizeMonth(month)
	events, err := m.fetch.ListEventsByMonth(ctx, month)
	if err != nil {
		return fmt.Errorf("failed to refetch %s: %w", month, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.events {
		if e.Month == month {
			delete(m.events, id)
		}
	}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return nil
}

// Handler adapts Apply for Realtime.SetHandler. Errors are logged.
func (m *Mirror) Handler(ctx context.Context) func(Notification) {
	return func(n Notification) {
		if err := m.Apply(ctx, n); err != nil {
			logging.Warn().Err(err).Str("type", n.Type).Msg("Failed to apply notification")
		}
	}
}

// Sections returns the mirrored sections ordered by name.
func (m *Mirror) Sections() []models.Section {
	m.mu.RLock()
	out := make([]models.Section, 0, len(m.sections))
	for _, s := range m.sections {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Events returns the mirrored events of month, or all events when month
// is empty, ordered by date, title and id.
func (m *Mirror) Events(month string) []models.Event {
	month = models.NormalizeMonth(month)
	m.mu.RLock()
	out := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		if month == "" || e.Month == month {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Event returns one mirrored event.
func (m *Mirror) Event(id string) (models.Event, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	return e, ok
}
