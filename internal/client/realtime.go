// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/calsync/internal/logging"
)

// Defaults for RealtimeConfig.
const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultMaxRetries     = 5
	DefaultStableAfter    = 30 * time.Second
	// DefaultReadTimeout covers the server's 54s ping period with margin.
	DefaultReadTimeout = 60 * time.Second

	pongWriteWait = 5 * time.Second
)

// State is the connection state of a Realtime client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateTerminal means the retry budget is spent. It is never left.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateTerminal:
		return "TERMINAL"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Notification is one server push: {"type": ..., "data": ...}.
type Notification struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Conn is the part of a websocket connection Realtime reads from.
// *websocket.Conn implements it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens realtime connections. WebsocketDialer is the production
// implementation.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// RealtimeConfig configures a Realtime client. Zero values use the
// defaults.
type RealtimeConfig struct {
	URL            string
	ReconnectDelay time.Duration
	// MaxRetries is the number of consecutive failed dials or unstable
	// drops tolerated before the client goes terminal.
	MaxRetries int
	// StableAfter is how long a connection must stay up to reset the
	// failure count. Receiving any frame also resets it.
	StableAfter time.Duration
	// ReadTimeout is how long the connection may stay silent, pings
	// included, before it is treated as dropped.
	ReadTimeout time.Duration
	Dialer      Dialer
}

// Realtime keeps a connection to the server's notification stream and
// hands every notification to a single handler.
type Realtime struct {
	url            string
	dialer         Dialer
	reconnectDelay time.Duration
	maxRetries     int
	stableAfter    time.Duration
	readTimeout    time.Duration

	mu            sync.RWMutex
	state         State
	handler       func(Notification)
	onStateChange func(from, to State)
	failures      int
	running       bool
}

// NewRealtime creates a client in StateDisconnected. Call Run to connect.
func NewRealtime(cfg RealtimeConfig) *Realtime {
	r := &Realtime{
		url:            cfg.URL,
		dialer:         cfg.Dialer,
		reconnectDelay: cfg.ReconnectDelay,
		maxRetries:     cfg.MaxRetries,
		stableAfter:    cfg.StableAfter,
		readTimeout:    cfg.ReadTimeout,
	}
	if r.dialer == nil {
		r.dialer = WebsocketDialer{}
	}
	if r.reconnectDelay <= 0 {
		r.reconnectDelay = DefaultReconnectDelay
	}
	if r.maxRetries <= 0 {
		r.maxRetries = DefaultMaxRetries
	}
	if r.stableAfter <= 0 {
		r.stableAfter = DefaultStableAfter
	}
	if r.readTimeout <= 0 {
		r.readTimeout = DefaultReadTimeout
	}
	return r
}

// SetHandler registers the notification handler, replacing any previous
// one. Handlers run on the read goroutine and should not block.
func (r *Realtime) SetHandler(fn func(Notification)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = fn
}

// OnStateChange registers a callback invoked after every transition.
func (r *Realtime) OnStateChange(fn func(from, to State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChange = fn
}

// State returns the current state.
func (r *Realtime) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Run connects and reconnects until ctx is canceled or the retry budget
// is spent. It returns ctx.Err() or ErrTerminal.
func (r *Realtime) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateTerminal {
		r.mu.Unlock()
		return ErrTerminal
	}
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("realtime client already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	logger := logging.WithComponent("realtime")
	for {
		if err := ctx.Err(); err != nil {
			r.setState(StateDisconnected)
			return err
		}

		r.setState(StateConnecting)
		conn, err := r.dialer.Dial(ctx, r.url)
		if err != nil {
			if ctx.Err() != nil {
				r.setState(StateDisconnected)
				return ctx.Err()
			}
			logger.Warn().Err(err).Str("url", r.url).Msg("Realtime connect failed")
			r.recordFailure()
		} else {
			r.setState(StateConnected)
			logger.Info().Str("url", r.url).Msg("Realtime connected")
			stable := r.readLoop(ctx, conn)
			if ctx.Err() != nil {
				r.setState(StateDisconnected)
				return ctx.Err()
			}
			if stable {
				r.resetFailures()
			}
			r.recordFailure()
			logger.Warn().Str("url", r.url).Bool("stable", stable).Msg("Realtime connection dropped")
		}

		r.setState(StateDisconnected)
		if r.exhausted() {
			r.setState(StateTerminal)
			logger.Error().Int("max_retries", r.maxRetries).Msg("Realtime retries exhausted, manual refresh required")
			return ErrTerminal
		}

		timer := time.NewTimer(r.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// readLoop dispatches frames until the connection fails. It reports
// whether the connection counted as stable.
func (r *Realtime) readLoop(ctx context.Context, conn Conn) bool {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	// A half-open connection never errors on its own; the deadline turns
	// silence into a drop. Server pings keep it alive.
	conn.SetPingHandler(func(appData string) error {
		r.extendDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pongWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	start := time.Now()
	received := false
	for {
		r.extendDeadline(conn)
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logging.Debug().Err(err).Msg("Realtime read failed")
			}
			return received || time.Since(start) >= r.stableAfter
		}
		received = true
		r.dispatch(frame)
	}
}

func (r *Realtime) extendDeadline(conn Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(r.readTimeout)); err != nil {
		logging.Debug().Err(err).Msg("Failed to set realtime read deadline")
	}
}

// dispatch decodes one frame. Malformed frames are logged and dropped;
// the connection stays open.
func (r *Realtime) dispatch(frame []byte) {
	var n Notification
	if err := json.Unmarshal(frame, &n); err != nil || n.Type == "" {
		logging.Warn().Err(err).Int("bytes", len(frame)).Msg("Discarding malformed realtime message")
		return
	}
	if n.Type == "pong" {
		return
	}

	r.mu.RLock()
	handler := r.handler
	r.mu.RUnlock()
	if handler != nil {
		handler(n)
	}
}

func (r *Realtime) setState(to State) {
	r.mu.Lock()
	from := r.state
	if from == to || from == StateTerminal {
		r.mu.Unlock()
		return
	}
	r.state = to
	cb := r.onStateChange
	r.mu.Unlock()

	if cb != nil {
		cb(from, to)
	}
}

func (r *Realtime) recordFailure() {
	r.mu.Lock()
	r.failures++
	r.mu.Unlock()
}

func (r *Realtime) resetFailures() {
	r.mu.Lock()
	r.failures = 0
	r.mu.Unlock()
}

func (r *Realtime) exhausted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failures > r.maxRetries
}
