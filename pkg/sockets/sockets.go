// Package sockets serves websocket connections and broadcasts messages to all of them.
package sockets

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
)

type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	onConnected  func(*Conn)
	logger       *zap.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

func New(opts ...func(*Hub)) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 15 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		logger: zap.L(),
		conns:  map[*Conn]struct{}{},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Conn is one connected client. Messages are queued and written by the connection's own
// goroutine; a client that cannot keep up loses messages rather than slowing the hub.
type Conn struct {
	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

// Send queues msg for this connection. It reports false when the message was dropped.
func (c *Conn) Send(msg []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &Conn{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	if h.onConnected != nil {
		h.onConnected(c)
	}
	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages; it exists to notice the client going away.
func (h *Hub) readLoop(c *Conn) {
	defer h.remove(c)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *Conn) {
	defer h.remove(c)
	var ping <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ping:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast queues msg on every connection and returns how many accepted it.
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for c := range h.conns {
		if c.Send(msg) {
			sent++
		}
	}
	return sent
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.remove(c)
	}
	return nil
}
