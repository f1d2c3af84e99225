package sockets

import (
	"time"

	"go.uber.org/zap"
)

func WithPingInterval(d time.Duration) func(*Hub) {
	return func(h *Hub) {
		h.pingInterval = d
	}
}

func OnConnected(f func(*Conn)) func(*Hub) {
	return func(h *Hub) {
		h.onConnected = f
	}
}

func WithLogger(l *zap.Logger) func(*Hub) {
	return func(h *Hub) {
		h.logger = l
	}
}
