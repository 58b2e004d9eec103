// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates and starts a hub that stops with the test.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(16, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a client without a connection.
func createTestClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan []byte, buffer), pong: make(chan struct{}, 1)}
}

// waitForClients polls until the hub reports want clients.
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	for i := 0; i < 50; i++ {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case frame, ok := <-client.send:
		if !ok {
			t.Fatal("client queue closed")
		}
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("invalid frame %s: %v", frame, err)
		}
		return Message{Type: msg.Type, Data: msg.Data}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestNewHub_Defaults(t *testing.T) {
	hub := NewHub(0, -1)
	if cap(hub.broadcast) != DefaultBufferSize {
		t.Errorf("broadcast buffer = %d, want %d", cap(hub.broadcast), DefaultBufferSize)
	}
	if hub.clientBuffer != DefaultClientBufferSize {
		t.Errorf("client buffer = %d, want %d", hub.clientBuffer, DefaultClientBufferSize)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", hub.ClientCount())
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := setupHub(t)
	clients := []*Client{createTestClient(hub, 4), createTestClient(hub, 4), createTestClient(hub, 4)}
	for _, c := range clients {
		hub.Register <- c
	}
	waitForClients(t, hub, 3)

	event := models.Event{ID: "e1", Date: "2026-03-01", Title: "Review", Month: "MARCH", Color: models.DefaultColor}
	hub.Broadcast(context.Background(), models.KindEventCreated, event)

	for _, c := range clients {
		msg := receive(t, c)
		if msg.Type != models.KindEventCreated {
			t.Errorf("type = %q, want %q", msg.Type, models.KindEventCreated)
		}
		var got models.Event
		if err := json.Unmarshal(msg.Data.(json.RawMessage), &got); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if got.ID != "e1" || got.Title != "Review" {
			t.Errorf("unexpected payload %+v", got)
		}
	}
}

func TestHub_EveryChangeKind(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, len(models.ChangeKinds))
	hub.Register <- client
	waitForClients(t, hub, 1)

	for _, kind := range models.ChangeKinds {
		hub.Broadcast(context.Background(), kind, models.DeletedRef{ID: "x"})
	}
	for _, kind := range models.ChangeKinds {
		if msg := receive(t, client); msg.Type != kind {
			t.Errorf("type = %q, want %q", msg.Type, kind)
		}
	}
}

// A slow client is dropped without affecting delivery to the others.
func TestHub_FullClientIsRemoved(t *testing.T) {
	hub := setupHub(t)
	slow := createTestClient(hub, 1)
	fast := createTestClient(hub, 8)
	hub.Register <- slow
	hub.Register <- fast
	waitForClients(t, hub, 2)

	slow.send <- []byte(`{"type":"filler"}`)
	hub.BroadcastJSON("test_overflow", map[string]string{"overflow": "test"})

	if msg := receive(t, fast); msg.Type != "test_overflow" {
		t.Errorf("fast client got %q", msg.Type)
	}
	waitForClients(t, hub, 1)

	<-slow.send // filler
	if _, ok := <-slow.send; ok {
		t.Error("slow client queue should be closed")
	}
}

func TestHub_UnregisterTwiceClosesOnce(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, 1)
	hub.Register <- client
	waitForClients(t, hub, 1)

	hub.Unregister <- client
	hub.Unregister <- client
	waitForClients(t, hub, 0)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(2, 2) // not running, so the queue fills

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Broadcast(context.Background(), models.KindEventDeleted, models.DeletedRef{ID: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
	if len(hub.broadcast) != 2 {
		t.Errorf("queued = %d, want 2", len(hub.broadcast))
	}
}

func TestHub_BroadcastRaw(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, 4)
	hub.Register <- client
	waitForClients(t, hub, 1)

	hub.BroadcastRaw([]byte(`not json`))
	hub.BroadcastRaw([]byte(`{"data":{}}`))
	hub.BroadcastRaw([]byte(`{"type":"events_bulk_update","data":{"month":"MARCH","count":2}}`))

	msg := receive(t, client)
	if msg.Type != models.KindEventsBulkUpdate {
		t.Fatalf("type = %q", msg.Type)
	}
	var bu models.BulkUpdate
	if err := json.Unmarshal(msg.Data.(json.RawMessage), &bu); err != nil {
		t.Fatal(err)
	}
	if bu.Month != "MARCH" || bu.Count != 2 {
		t.Errorf("unexpected payload %+v", bu)
	}
}

func TestHub_ConcurrentChurn(t *testing.T) {
	hub := setupHub(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := createTestClient(hub, 64)
			hub.Register <- c
			hub.Unregister <- c
		}()
		go func() {
			defer wg.Done()
			hub.BroadcastJSON("churn", nil)
		}()
	}
	wg.Wait()
	waitForClients(t, hub, 0)
}

func TestHub_RunWithContext(t *testing.T) {
	t.Run("closes all clients on cancel", func(t *testing.T) {
		hub := NewHub(4, 4)
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- hub.RunWithContext(ctx) }()

		clients := []*Client{createTestClient(hub, 1), createTestClient(hub, 1)}
		for _, c := range clients {
			hub.Register <- c
		}
		waitForClients(t, hub, 2)

		cancel()
		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("RunWithContext did not return")
		}
		if hub.ClientCount() != 0 {
			t.Errorf("expected 0 clients after shutdown, got %d", hub.ClientCount())
		}
		for _, c := range clients {
			if _, ok := <-c.send; ok {
				t.Error("client queue should be closed")
			}
		}
	})

	t.Run("returns on deadline", func(t *testing.T) {
		hub := NewHub(4, 4)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if err := hub.RunWithContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	})
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("got %q", got)
	}

	expired, cancel2 := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel2()
	<-expired.Done()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("got %q", got)
	}
}

func TestMarshalMessage(t *testing.T) {
	raw, err := MarshalMessage(Message{Type: models.KindSectionDeleted, Data: models.DeletedRef{ID: "s1", Cascaded: 3}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"section_deleted","data":{"id":"s1","cascaded":3}}`
	if string(raw) != want {
		t.Errorf("got %s, want %s", raw, want)
	}
}

func BenchmarkHub_Broadcast(b *testing.B) {
	hub := NewHub(b.N+1, 1)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Broadcast(ctx, models.KindEventUpdated, models.DeletedRef{ID: "x"})
	}
}

func TestHub_RegistrationAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(4, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	client := createTestClient(hub, 1)
	if !hub.RegisterClient(client) {
		t.Fatal("register on a running hub should succeed")
	}
	waitForClients(t, hub, 1)

	cancel()
	<-done

	finished := make(chan bool, 1)
	go func() {
		hub.UnregisterClient(client)
		finished <- hub.RegisterClient(createTestClient(hub, 1))
	}()
	select {
	case ok := <-finished:
		if ok {
			t.Error("register on a stopped hub should report false")
		}
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked on a stopped hub")
	}

	// A restarted hub accepts clients again once its loop is running.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go func() { _ = hub.RunWithContext(ctx2) }()
	deadline := time.Now().Add(time.Second)
	for !hub.RegisterClient(createTestClient(hub, 1)) {
		if time.Now().After(deadline) {
			t.Fatal("restarted hub never accepted a client")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
