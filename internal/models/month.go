// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package models

import (
	"strings"
	"time"
)

// NormalizeMonth upper-cases and trims a month name. It does not check
// that the result is a real month; see IsMonth.
func NormalizeMonth(month string) string {
	return strings.ToUpper(strings.TrimSpace(month))
}

// IsMonth reports whether name is an English month name in any case.
func IsMonth(name string) bool {
	_, ok := monthIndex[NormalizeMonth(name)]
	return ok
}

// MonthOf returns the uppercase month name of an ISO date, or "" if the
// date does not parse.
func MonthOf(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return ""
	}
	return strings.ToUpper(t.Month().String())
}

// MonthNumber returns 1..12 for a month name, 0 when unknown.
func MonthNumber(name string) time.Month {
	return monthIndex[NormalizeMonth(name)]
}

var monthIndex = func() map[string]time.Month {
	m := make(map[string]time.Month, 12)
	for i := time.January; i <= time.December; i++ {
		m[strings.ToUpper(i.String())] = i
	}
	return m
}()
