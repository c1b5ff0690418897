package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
)

type stubStates struct {
	mu      sync.Mutex
	topic   string
	handler func(topic string, payload []byte)
	err     error
}

func (s *stubStates) Subscribe(topic string, _ byte, handler func(string, []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = topic
	s.handler = handler
	return s.err
}

func (s *stubStates) deliver(topic string, payload []byte) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h(topic, payload)
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketRelaysState(t *testing.T) {
	states := &stubStates{}
	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:   testLogger(),
		Registry: testRegistry(t),
		Modem:    &stubModem{},
		States:   states,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	if states.topic != stateTopic {
		t.Errorf("subscribed topic = %q, want %q", states.topic, stateTopic)
	}

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	waitForClients(t, srv.hub, 1)

	states.deliver("graylogic/state/insteon/1A.2B.3C",
		[]byte(`{"device_id":"lamp-living","state":{"on":true,"level":100}}`))

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}

	var msg struct {
		Type      string         `json:"type"`
		EventType string         `json:"event_type"`
		Topic     string         `json:"topic"`
		Payload   map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msg.EventType != WSEventStateChanged {
		t.Errorf("event_type = %q, want %q", msg.EventType, WSEventStateChanged)
	}
	if msg.Topic != "graylogic/state/insteon/1A.2B.3C" {
		t.Errorf("topic = %q", msg.Topic)
	}
	if msg.Payload["device_id"] != "lamp-living" {
		t.Errorf("payload device_id = %v, want lamp-living", msg.Payload["device_id"])
	}
}

func TestWebSocketIgnoresMalformedState(t *testing.T) {
	srv := testServer(t, &stubModem{})

	c := &wsClient{hub: srv.hub, send: make(chan []byte, 1)}
	srv.hub.register(c)

	srv.relayState("graylogic/state/insteon/A1", []byte("not json"))

	select {
	case msg := <-c.send:
		t.Errorf("unexpected broadcast %s", msg)
	default:
	}
	srv.hub.unregister(c)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub(testLogger())
	c := &wsClient{hub: h, send: make(chan []byte, 1)}
	h.register(c)

	h.Broadcast(WSEventStateChanged, "t", map[string]any{"n": 1})
	h.Broadcast(WSEventStateChanged, "t", map[string]any{"n": 2})

	if got := len(c.send); got != 1 {
		t.Errorf("buffered = %d, want 1", got)
	}

	h.unregister(c)
	h.unregister(c)
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestStartToleratesSubscribeFailure(t *testing.T) {
	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:   testLogger(),
		Registry: testRegistry(t),
		Modem:    &stubModem{},
		States:   &stubStates{err: errors.New("not connected")},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Errorf("Start() error = %v, want nil", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
