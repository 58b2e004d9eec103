// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Package changefeed carries committed calendar changes between server
// instances over watermill. Each instance publishes its own changes and
// forwards every change on the topic, its own included, to its local hub.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/metrics"
	"github.com/tomtom215/calsync/internal/websocket"
)

// Message metadata keys.
const (
	MetadataOrigin = "origin"
	MetadataKind   = "kind"
)

const defaultQueueSize = 256

// Feed publishes change notifications to the topic. Broadcast only queues
// the message; Serve drains the queue through the circuit breaker so a
// stalled transport never blocks a request.
type Feed struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	origin     string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[struct{}]
	queue      chan *message.Message
	transport  string

	mu     sync.RWMutex
	closed bool
}

// New builds a feed for cfg. The transport is NATS when the binary was
// built with the nats tag and cfg.NATSURL is set, an in-process go channel
// otherwise.
func New(cfg *config.RealtimeConfig) (*Feed, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger().With("component", "changefeed"))
	origin := uuid.New().String()

	var (
		pub       message.Publisher
		sub       message.Subscriber
		transport string
		err       error
	)
	if natsAvailable && cfg.NATSURL != "" {
		pub, sub, err = newNATSTransport(cfg.NATSURL, origin, logger)
		if err != nil {
			return nil, err
		}
		transport = "nats"
	} else {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(cfg.HubBufferSize)}, logger)
		pub, sub, transport = ch, ch, "gochannel"
	}

	feed := NewWithTransport(pub, sub, cfg.Topic, cfg.PublishTimeout)
	feed.origin = origin
	feed.transport = transport
	logging.Info().Str("transport", transport).Str("topic", cfg.Topic).Str("origin", origin).Msg("Changefeed ready")
	return feed, nil
}

// NewWithTransport wires a feed to an existing publisher and subscriber.
func NewWithTransport(pub message.Publisher, sub message.Subscriber, topic string, timeout time.Duration) *Feed {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Feed{
		publisher:  pub,
		subscriber: sub,
		topic:      topic,
		origin:     uuid.New().String(),
		timeout:    timeout,
		breaker:    newBreaker("changefeed"),
		queue:      make(chan *message.Message, defaultQueueSize),
		transport:  "custom",
	}
}

// Origin identifies this instance in message metadata.
func (f *Feed) Origin() string { return f.origin }

// Topic returns the watermill topic.
func (f *Feed) Topic() string { return f.topic }

// Subscriber is used by the Forwarder.
func (f *Feed) Subscriber() message.Subscriber { return f.subscriber }

// Broadcast encodes a {"type","data"} frame and queues it for publishing.
// It implements websocket.Broadcaster.
func (f *Feed) Broadcast(ctx context.Context, kind string, data interface{}) {
	payload, err := json.Marshal(websocket.Message{Type: kind, Data: data})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("kind", kind).Msg("failed to encode change notification")
		metrics.FeedPublished.WithLabelValues("error").Inc()
		return
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set(MetadataOrigin, f.origin)
	msg.Metadata.Set(MetadataKind, kind)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		metrics.FeedPublished.WithLabelValues("rejected").Inc()
		return
	}
	select {
	case f.queue <- msg:
	default:
		metrics.FeedPublished.WithLabelValues("rejected").Inc()
		logging.Ctx(ctx).Warn().Str("kind", kind).Msg("changefeed queue full, dropping notification")
	}
}

// Serve publishes queued messages until ctx is canceled.
func (f *Feed) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-f.queue:
			f.publish(ctx, msg)
		}
	}
}

func (f *Feed) publish(ctx context.Context, msg *message.Message) {
	pubCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	msg.SetContext(pubCtx)

	done := make(chan error, 1)
	_, err := f.breaker.Execute(func() (struct{}, error) {
		go func() { done <- f.publisher.Publish(f.topic, msg) }()
		select {
		case err := <-done:
			return struct{}{}, err
		case <-pubCtx.Done():
			return struct{}{}, fmt.Errorf("publish timed out: %w", pubCtx.Err())
		}
	})
	if err != nil {
		metrics.FeedPublished.WithLabelValues("error").Inc()
		logging.Warn().Err(err).Str("kind", msg.Metadata.Get(MetadataKind)).Str("message_uuid", msg.UUID).Msg("Changefeed publish failed")
		return
	}
	metrics.FeedPublished.WithLabelValues("ok").Inc()
}

// Close closes the transport. Queued messages not yet published are lost.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	err := f.publisher.Close()
	if f.subscriber != nil && interface{}(f.subscriber) != interface{}(f.publisher) {
		err = errors.Join(err, f.subscriber.Close())
	}
	return err
}

// String is used as the supervisor service name.
func (f *Feed) String() string {
	return "changefeed-publisher/" + f.transport
}
