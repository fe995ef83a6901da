package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guardline-io/guardline/pkg/logger"
)

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	httpServer := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(httpServer.Close)

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.ClientCount() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", s.ClientCount(), n)
}

func TestBroadcastReachesClient(t *testing.T) {
	s := NewServer(nil, logger.Nop())
	conn := dialTestServer(t, s)
	waitForClients(t, s, 1)

	s.Broadcast(&Message{
		Type: "risk",
		Data: map[string]interface{}{"value": float64(51), "level": "medium"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}
	if msg.Type != "risk" {
		t.Errorf("type = %s, want risk", msg.Type)
	}
	if msg.Data["level"] != "medium" || msg.Data["value"] != float64(51) {
		t.Errorf("data = %+v, want broadcast payload", msg.Data)
	}
}

func TestClientCountTracksDisconnect(t *testing.T) {
	s := NewServer(nil, logger.Nop())
	conn := dialTestServer(t, s)
	waitForClients(t, s, 1)

	conn.Close()
	waitForClients(t, s, 0)
}

func TestOriginFilter(t *testing.T) {
	s := NewServer([]string{"https://app.example.com"}, logger.Nop())
	httpServer := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")

	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	if conn, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		conn.Close()
		t.Fatal("dial from disallowed origin should fail")
	}

	header["Origin"] = []string{"https://app.example.com"}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial from allowed origin failed: %v", err)
	}
	conn.Close()
}
