package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	applogger "HeatPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordScan(string)           {}
func (nopMetrics) RecordStage(string, float64) {}
func (nopMetrics) RecordAnomalies(int)         {}
func (nopMetrics) RecordAlerts(string, int)    {}
func (nopMetrics) RecordError(string)          {}
func (nopMetrics) RecordInstruments(int)       {}
func (nopMetrics) RecordWSClients(int)         {}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return New(l, nopMetrics{})
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	// wait for registration
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.Broadcast(map[string]string{"type": "update"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]string
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["type"] != "update" {
		t.Fatalf("unexpected message: %v", msg)
	}
}

func TestBroadcastNeverBlocksOnSlowClient(t *testing.T) {
	h := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// never reads; large payloads fill the socket buffer, then the
	// client buffer, and the hub must shed the subscriber
	payload := map[string]string{"fill": strings.Repeat("x", 64*1024)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < clientBufSize*10; i++ {
			h.Broadcast(payload)
			if h.ClientCount() == 0 {
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast blocked on slow client")
	}
	if h.ClientCount() != 0 {
		t.Fatalf("stalled client must be dropped, got %d registered", h.ClientCount())
	}
}

func TestBroadcastDropsStalledClient(t *testing.T) {
	h := newTestHub(t)
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConns <- conn
	}))
	defer srv.Close()

	peer := dial(t, srv)
	defer peer.Close()
	conn := <-serverConns

	// register a client without a write loop and a buffer already at
	// capacity, as if its writer had stalled mid-drain
	c := &client{conn: conn, out: make(chan []byte, clientBufSize)}
	for i := 0; i < clientBufSize; i++ {
		c.out <- []byte("{}")
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.Broadcast(map[string]string{"type": "update"})

	if h.ClientCount() != 0 {
		t.Fatalf("full-buffer client must be dropped, got %d registered", h.ClientCount())
	}
	for i := 0; i < clientBufSize; i++ {
		<-c.out
	}
	select {
	case _, ok := <-c.out:
		if ok {
			t.Fatal("unexpected message after drop")
		}
	default:
		t.Fatal("dropped client channel left open")
	}
}

func TestShutdownClosesClients(t *testing.T) {
	h := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := h.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if h.ClientCount() != 0 {
		t.Fatalf("expected empty registry, got %d", h.ClientCount())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // connection closed as expected
		}
	}
}
