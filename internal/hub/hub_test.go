package hub

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

// startEchoServer registers every incoming connection in h and holds it
// open until the peer disconnects.
func startEchoServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		h.Add(ws)
		defer h.Remove(ws)
		for {
			var discard string
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("count = %d, want %d", h.Count(), want)
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	h := New()
	srv := startEchoServer(t, h)

	a := dial(t, srv)
	b := dial(t, srv)
	waitForCount(t, h, 2)

	delivered := h.Broadcast(map[string]string{"hello": "world"})
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}

	for _, ws := range []*websocket.Conn{a, b} {
		var msg string
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			t.Fatalf("receiving: %v", err)
		}
		if !strings.Contains(msg, `"hello":"world"`) {
			t.Errorf("message = %s", msg)
		}
	}
}

func TestBroadcastEvictsDeadConnections(t *testing.T) {
	h := New()
	srv := startEchoServer(t, h)

	a := dial(t, srv)
	b := dial(t, srv)
	waitForCount(t, h, 2)

	a.Close()

	// The server side notices the close and removes the connection; give
	// it a moment.
	waitForCount(t, h, 1)

	delivered := h.Broadcast("still here")
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}

	var msg string
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := websocket.Message.Receive(b, &msg); err != nil {
		t.Fatalf("surviving connection broken: %v", err)
	}
}

func TestBroadcastOnEmptyHub(t *testing.T) {
	h := New()
	if got := h.Broadcast("anyone?"); got != 0 {
		t.Errorf("delivered = %d, want 0", got)
	}
}
