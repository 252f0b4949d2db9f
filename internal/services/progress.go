package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const progressWriteTimeout = 5 * time.Second

// ProgressConn is the write side of a live client connection. *websocket.Conn satisfies it.
type ProgressConn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ProgressHub fans progress events out to the connections of the user they concern.
type ProgressHub struct {
	mu      sync.RWMutex
	clients map[ProgressConn]string
	ch      chan ProgressEvent
	log     logrus.FieldLogger
}

func NewProgressHub(log logrus.FieldLogger) *ProgressHub {
	return &ProgressHub{
		clients: map[ProgressConn]string{},
		ch:      make(chan ProgressEvent, 64),
		log:     log,
	}
}

func (h *ProgressHub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.ch:
			h.deliver(event)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Publish queues event for delivery. Events are dropped when the queue is full.
func (h *ProgressHub) Publish(event ProgressEvent) {
	select {
	case h.ch <- event:
	default:
		h.log.WithField("type", event.Type).Debug("progress event dropped")
	}
}

func (h *ProgressHub) Add(conn ProgressConn, username string) {
	h.mu.Lock()
	h.clients[conn] = username
	h.mu.Unlock()
}

func (h *ProgressHub) Remove(conn ProgressConn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Connections returns how many clients are subscribed for username.
func (h *ProgressHub) Connections(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, owner := range h.clients {
		if owner == username {
			count++
		}
	}
	return count
}

func (h *ProgressHub) deliver(event ProgressEvent) {
	h.mu.RLock()
	targets := make([]ProgressConn, 0, 1)
	for conn, owner := range h.clients {
		if owner == event.Username {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			h.log.WithError(err).WithField("username", event.Username).Debug("progress client dropped")
			h.Remove(conn)
			_ = conn.Close()
		}
	}
}

func (h *ProgressHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
