// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package changefeed

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/metrics"
)

// RawBroadcaster accepts an encoded {"type","data"} frame.
// *websocket.Hub implements it.
type RawBroadcaster interface {
	BroadcastRaw(frame []byte)
}

// Forwarder relays every message on the topic to the local hub.
type Forwarder struct {
	subscriber message.Subscriber
	topic      string
	origin     string
	hub        RawBroadcaster
}

// NewForwarder bridges feed to hub.
func NewForwarder(feed *Feed, hub RawBroadcaster) *Forwarder {
	return &Forwarder{
		subscriber: feed.Subscriber(),
		topic:      feed.Topic(),
		origin:     feed.Origin(),
		hub:        hub,
	}
}

// Serve subscribes and forwards until ctx is canceled or the subscription
// channel closes. Messages are always acked: a notification that cannot be
// relayed is stale by the time it could be retried.
func (f *Forwarder) Serve(ctx context.Context) error {
	messages, err := f.subscriber.Subscribe(ctx, f.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", f.topic, err)
	}
	logging.Info().Str("topic", f.topic).Msg("Changefeed forwarder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", f.topic)
			}
			f.handle(msg)
		}
	}
}

func (f *Forwarder) handle(msg *message.Message) {
	defer msg.Ack()

	logging.Debug().
		Str("message_uuid", msg.UUID).
		Str("kind", msg.Metadata.Get(MetadataKind)).
		Bool("local_origin", msg.Metadata.Get(MetadataOrigin) == f.origin).
		Msg("Forwarding change notification")

	f.hub.BroadcastRaw(msg.Payload)
	metrics.FeedForwarded.Inc()
}

func (f *Forwarder) String() string {
	return "changefeed-forwarder"
}
