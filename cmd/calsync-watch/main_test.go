// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/calsync/internal/client"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:3000", "ws://localhost:3000/ws"},
		{"https://cal.example.com/", "wss://cal.example.com/ws"},
		{"http://host/calendar", "ws://host/calendar/ws"},
		{"ws://host:1", "ws://host:1/ws"},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := websocketURL("ftp://host")
	assert.Error(t, err)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("CALSYNC_TEST_VALUE", "set")
	assert.Equal(t, "set", envOr("CALSYNC_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", envOr("CALSYNC_TEST_UNSET", "fallback"))
}

type countingLoader struct {
	loads int
	err   error
}

func (l *countingLoader) Load(context.Context) error {
	l.loads++
	return l.err
}

func TestResyncOnConnect(t *testing.T) {
	l := &countingLoader{}
	reports := 0
	onChange := resyncOnConnect(context.Background(), l, func() { reports++ })

	onChange(client.StateDisconnected, client.StateConnecting)
	assert.Equal(t, 0, l.loads)

	// First connect reloads too.
	onChange(client.StateConnecting, client.StateConnected)
	assert.Equal(t, 1, l.loads)
	assert.Equal(t, 1, reports)

	onChange(client.StateConnected, client.StateDisconnected)
	onChange(client.StateDisconnected, client.StateConnecting)
	onChange(client.StateConnecting, client.StateConnected)
	assert.Equal(t, 2, l.loads)
	assert.Equal(t, 2, reports)

	l.err = errors.New("server down")
	onChange(client.StateConnecting, client.StateConnected)
	assert.Equal(t, 3, l.loads)
	assert.Equal(t, 2, reports, "failed resync is not reported")
}
