// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

/*
Package cache keeps computed month views in memory between writes.

The export, calendar grid and iCalendar endpoints each read a month of
events and every section, then build a response from them. Those results
are cached per month and filter, and the whole cache is cleared whenever
a mutation commits locally or arrives from another instance over the
changefeed.

	gen := views.Generation()
	if v, ok := views.Get(key); ok {
	    return v
	}
	v := build()
	views.SetIfGeneration(key, v, gen)

Values are shared between requests and must not be modified.
*/
package cache
