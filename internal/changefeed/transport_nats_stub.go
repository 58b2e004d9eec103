// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

//go:build !nats

package changefeed

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const natsAvailable = false

func newNATSTransport(_, _ string, _ watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	return nil, nil, fmt.Errorf("NATS transport not available: build with -tags=nats")
}
