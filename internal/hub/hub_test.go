package hub

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := echo.New()
	e.GET("/hub/notifications", h.Serve)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hub/notifications"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count never reached %d (have %d)", want, h.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h, srv := newTestServer(t)

	c1 := dial(t, srv)
	c2 := dial(t, srv)
	waitForCount(t, h, 2)

	h.Broadcast("TaskCreated")

	for _, conn := range []*websocket.Conn{c1, c2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		kind, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.Equal(t, "TaskCreated", string(msg))
	}
}

func TestDisconnectDeregisters(t *testing.T) {
	h, srv := newTestServer(t)

	conn := dial(t, srv)
	waitForCount(t, h, 1)

	conn.Close()
	waitForCount(t, h, 0)

	// Broadcasting into an empty registry is a no-op.
	h.Broadcast("TaskUpdated")
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Register a subscriber directly with no reader draining the queue.
	ch := make(chan string, sendBuffer)
	h.mu.Lock()
	h.subscribers["stuck"] = ch
	h.mu.Unlock()

	for i := 0; i < sendBuffer; i++ {
		h.Broadcast("TaskUpdated")
	}
	require.Equal(t, 1, h.Count(), "a full queue alone does not drop the subscriber")

	// One more broadcast cannot be queued, so the subscriber goes.
	h.Broadcast("TaskUpdated")
	assert.Equal(t, 0, h.Count())

	// remove closed the channel after delivering the buffered events.
	drained := 0
	for range ch {
		drained++
	}
	assert.Equal(t, sendBuffer, drained)
}
