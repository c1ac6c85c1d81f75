// Package hub implements the live-update channel: a registry of
// websocket subscribers that each receive the bare event-type string
// whenever a task mutation commits. The hub is a liveness signal, not a
// delivery guarantee; clients re-fetch state when notified.
package hub

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	// sendBuffer bounds per-subscriber queueing. A subscriber that
	// falls this far behind is dropped rather than blocking broadcasts.
	sendBuffer = 16

	writeWait = 5 * time.Second
)

// Hub is the process-wide subscriber registry. It is initialized once
// at startup and shared by all request handlers; Broadcast and Serve
// are safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan string
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]chan string),
		upgrader: websocket.Upgrader{
			// The hub carries no client data and no credentials, so
			// cross-origin browser clients (the dev frontend) may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Broadcast queues the event-type string for every connected
// subscriber. Sends never block: a full queue means the subscriber is
// too slow and it gets dropped.
func (h *Hub) Broadcast(event string) {
	h.mu.RLock()
	var stale []string
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.logger.Warn("dropping slow live-update subscriber", "subscriber", id)
		h.remove(id)
	}
}

// Count reports the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Serve upgrades the request to a websocket and pumps broadcast events
// to the client until it disconnects. There is no client→server
// protocol; reads only serve to detect the close.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	ch := make(chan string, sendBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	h.logger.Info("live-update subscriber connected", "subscriber", id)

	go h.writeLoop(id, conn, ch)

	// Discard inbound frames; an error means the peer went away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(id)
	return nil
}

func (h *Hub) writeLoop(id string, conn *websocket.Conn, ch chan string) {
	defer conn.Close()
	for event := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
			h.remove(id)
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// remove deregisters a subscriber and closes its queue, which ends the
// write loop. Safe to call twice for the same id.
func (h *Hub) remove(id string) {
	h.mu.Lock()
	ch, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
		h.logger.Info("live-update subscriber disconnected", "subscriber", id)
	}
}
