// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/samber/mo"
)

// EventPatch is a merge-patch for an event. An absent option keeps the
// stored value. SectionID is Some(nil) when the body carried
// "section_id": null, which detaches the event from its section.
type EventPatch struct {
	Date      mo.Option[string]
	Title     mo.Option[string]
	Color     mo.Option[string]
	Month     mo.Option[string]
	SectionID mo.Option[*string]
}

// SectionPatch is a merge-patch for a section. DiscordChannelID follows
// the same null-clears rule as EventPatch.SectionID.
type SectionPatch struct {
	Name             mo.Option[string]
	Color            mo.Option[string]
	DiscordChannelID mo.Option[*string]
	Enabled          mo.Option[bool]
}

// EventPatchFields mirrors EventPatch with pointers so the validator can
// check only the fields that were sent.
type EventPatchFields struct {
	Date      *string `json:"date" validate:"omitnil,datetime=2006-01-02"`
	Title     *string `json:"title" validate:"omitnil,min=1,max=500"`
	Color     *string `json:"color" validate:"omitnil,hexcolor"`
	Month     *string `json:"month" validate:"omitnil,calmonth"`
	SectionID *string `json:"section_id" validate:"omitnil,uuid"`
}

// SectionPatchFields is the validation view of SectionPatch.
type SectionPatchFields struct {
	Name             *string `json:"name" validate:"omitnil,min=1,max=100"`
	Color            *string `json:"color" validate:"omitnil,hexcolor"`
	DiscordChannelID *string `json:"discord_channel_id" validate:"omitnil,max=64"`
}

// Fields returns the validation view of p.
func (p EventPatch) Fields() EventPatchFields {
	f := EventPatchFields{
		Date:  optionPtr(p.Date),
		Title: optionPtr(p.Title),
		Color: optionPtr(p.Color),
		Month: optionPtr(p.Month),
	}
	if id, ok := p.SectionID.Get(); ok {
		f.SectionID = id
	}
	return f
}

// Fields returns the validation view of p.
func (p SectionPatch) Fields() SectionPatchFields {
	f := SectionPatchFields{
		Name:  optionPtr(p.Name),
		Color: optionPtr(p.Color),
	}
	if ch, ok := p.DiscordChannelID.Get(); ok {
		f.DiscordChannelID = ch
	}
	return f
}

// Apply merges p into e. Month is normalized.
func (p EventPatch) Apply(e *Event) {
	e.Date = p.Date.OrElse(e.Date)
	e.Title = p.Title.OrElse(e.Title)
	e.Color = p.Color.OrElse(e.Color)
	if m, ok := p.Month.Get(); ok {
		e.Month = NormalizeMonth(m)
	}
	if id, ok := p.SectionID.Get(); ok {
		e.SectionID = id
	}
}

// Apply merges p into s.
func (p SectionPatch) Apply(s *Section) {
	s.Name = p.Name.OrElse(s.Name)
	s.Color = p.Color.OrElse(s.Color)
	s.Enabled = p.Enabled.OrElse(s.Enabled)
	if ch, ok := p.DiscordChannelID.Get(); ok {
		s.DiscordChannelID = ch
	}
}

// DecodeEventPatch parses a PUT /api/events/{id} body. Unknown keys are
// ignored; a null for a non-nullable field is treated as absent.
func DecodeEventPatch(body []byte) (EventPatch, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return EventPatch{}, err
	}
	var p EventPatch
	if p.Date, err = stringField(raw, "date"); err != nil {
		return EventPatch{}, err
	}
	if p.Title, err = stringField(raw, "title"); err != nil {
		return EventPatch{}, err
	}
	if p.Color, err = stringField(raw, "color"); err != nil {
		return EventPatch{}, err
	}
	if p.Month, err = stringField(raw, "month"); err != nil {
		return EventPatch{}, err
	}
	if p.SectionID, err = nullableStringField(raw, "section_id"); err != nil {
		return EventPatch{}, err
	}
	return p, nil
}

// DecodeSectionPatch parses a PUT /api/sections/{id} body.
func DecodeSectionPatch(body []byte) (SectionPatch, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return SectionPatch{}, err
	}
	var p SectionPatch
	if p.Name, err = stringField(raw, "name"); err != nil {
		return SectionPatch{}, err
	}
	if p.Color, err = stringField(raw, "color"); err != nil {
		return SectionPatch{}, err
	}
	if p.DiscordChannelID, err = nullableStringField(raw, "discord_channel_id"); err != nil {
		return SectionPatch{}, err
	}
	if v, ok := raw["enabled"]; ok && !isNull(v) {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return SectionPatch{}, fmt.Errorf("enabled must be a boolean")
		}
		p.Enabled = mo.Some(b)
	}
	return p, nil
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	return raw, nil
}

func stringField(raw map[string]json.RawMessage, key string) (mo.Option[string], error) {
	v, ok := raw[key]
	if !ok || isNull(v) {
		return mo.None[string](), nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return mo.None[string](), fmt.Errorf("%s must be a string", key)
	}
	return mo.Some(s), nil
}

func nullableStringField(raw map[string]json.RawMessage, key string) (mo.Option[*string], error) {
	v, ok := raw[key]
	if !ok {
		return mo.None[*string](), nil
	}
	if isNull(v) {
		return mo.Some[*string](nil), nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return mo.None[*string](), fmt.Errorf("%s must be a string or null", key)
	}
	if s == "" {
		return mo.Some[*string](nil), nil
	}
	return mo.Some(&s), nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func optionPtr[T any](o mo.Option[T]) *T {
	if v, ok := o.Get(); ok {
		return &v
	}
	return nil
}
