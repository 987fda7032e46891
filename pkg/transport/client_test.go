package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netatlas/netatlas/pkg/logger"
	"github.com/netatlas/netatlas/pkg/models"
)

// recordingHandler captures everything the sources deliver.
type recordingHandler struct {
	mu     sync.Mutex
	events []Event
	states []models.ConnectionState
}

func (h *recordingHandler) HandleEvent(_ context.Context, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
}

func (h *recordingHandler) HandleConnectionState(state models.ConnectionState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.states = append(h.states, state)
}

func (h *recordingHandler) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.events)
}

func (h *recordingHandler) eventTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	types := make([]string, 0, len(h.events))
	for _, e := range h.events {
		types = append(types, e.Type)
	}

	return types
}

func (h *recordingHandler) stateCount(state models.ConnectionState) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0

	for _, s := range h.states {
		if s == state {
			n++
		}
	}

	return n
}

func (h *recordingHandler) firstStates(n int) []models.ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.states) < n {
		n = len(h.states)
	}

	return append([]models.ConnectionState(nil), h.states[:n]...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamClientReceivesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	snapshotRequests := make(chan Event, 1)
	apiKeys := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKeys <- r.Header.Get("X-API-Key")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req Event
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		snapshotRequests <- req

		_ = conn.WriteJSON(Event{Type: EventDeviceSighted, Data: json.RawMessage(`{"ip": "10.0.0.1"}`)})
		_ = conn.WriteJSON(Event{Type: EventPing})
		_ = conn.WriteJSON(Event{Type: "mystery"})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		_ = conn.WriteJSON(Event{Type: EventSnapshot, Data: json.RawMessage(`{"devices": []}`)})

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	handler := &recordingHandler{}
	client := NewStreamClient(StreamClientConfig{URL: wsURL(srv), APIKey: "sekrit"}, handler, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return handler.eventCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	// Pings, unknown types and malformed frames never reach the handler.
	assert.Equal(t, []string{EventDeviceSighted, EventSnapshot}, handler.eventTypes())
	assert.Equal(t, "sekrit", <-apiKeys)
	assert.Equal(t, eventSnapshotRequest, (<-snapshotRequests).Type)
	assert.Equal(t, models.ConnectionConnected, client.State())
	assert.Equal(t,
		[]models.ConnectionState{models.ConnectionConnecting, models.ConnectionConnected},
		handler.firstStates(2))

	cancel()

	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop on context cancellation")
	}
}

func TestStreamClientBackoffCapThenManualReconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}

	var dials atomic.Int32

	var accept atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accept.Load() {
			dials.Add(1)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	handler := &recordingHandler{}
	client := NewStreamClient(StreamClientConfig{
		URL:            wsURL(srv),
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}, handler, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return client.State() == models.ConnectionFailed }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), dials.Load())

	// Parked in failed: no spontaneous dialing.
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, int32(3), dials.Load())

	accept.Store(true)
	client.Reconnect()

	require.Eventually(t, func() bool { return client.State() == models.ConnectionConnected }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-runDone
}

func TestStreamClientReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		// Accept, then drop straight away to force a client retry.
		conn.Close()
	}))
	defer srv.Close()

	handler := &recordingHandler{}
	client := NewStreamClient(StreamClientConfig{
		URL:            wsURL(srv),
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, handler, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	require.Eventually(t, func() bool {
		return handler.stateCount(models.ConnectionConnected) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-runDone
}

func TestStreamClientClose(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	handler := &recordingHandler{}
	client := NewStreamClient(StreamClientConfig{URL: wsURL(srv)}, handler, logger.NewTestLogger())

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(context.Background()) }()

	require.Eventually(t, func() bool { return client.State() == models.ConnectionConnected }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, client.Close())

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after Close")
	}

	assert.Equal(t, models.ConnectionDisconnected, client.State())
}
