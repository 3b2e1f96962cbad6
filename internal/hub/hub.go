package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	domrepo "HeatPulse/internal/domain/repository"
	applogger "HeatPulse/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	clientBufSize  = 16
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// Hub fans scan results out to websocket subscribers. Broadcast never
// blocks: a client whose buffer is full or whose connection fails is
// dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	l       *applogger.Logger
	metrics domrepo.Metrics
}

func New(l *applogger.Logger, metrics domrepo.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		l:       l,
		metrics: metrics,
	}
}

// Serve upgrades the request and keeps the connection registered until
// the peer goes away or the hub shuts down.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, out: make(chan []byte, clientBufSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.RecordWSClients(n)
	h.l.Info("ws client connected", applogger.Int("clients", n))

	go h.writeLoop(c)
	go h.readLoop(c)
	return nil
}

// Broadcast serializes v once and offers it to every client. A client
// that cannot keep up is removed rather than left with a gapped stream.
func (h *Hub) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.l.Error("ws broadcast marshal error", applogger.Error(err))
		return
	}

	var stalled []*client
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.out <- payload:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.Unlock()

	// drop takes the lock itself, so stalled clients are collected
	// first and removed after release.
	for _, c := range stalled {
		h.l.Warn("ws client stalled, dropping")
		h.drop(c)
	}
}

// ClientCount returns the number of live subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every connection and rejects new ones.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.out)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.metrics.RecordWSClients(0)
	return nil
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.out)
	n := len(h.clients)
	h.mu.Unlock()

	c.conn.Close()
	h.metrics.RecordWSClients(n)
	h.l.Info("ws client disconnected", applogger.Int("clients", n))
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.out:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// readLoop discards inbound frames; its job is pong handling and
// noticing the peer closing.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}
