package gateway_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/gateway"
	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/session"
)

// echoHandler answers every line with "ok <line>" and "bye" for exit.
type echoHandler struct {
	mu         sync.Mutex
	lines      []string
	terminated []string
}

func (e *echoHandler) Dispatch(ctx context.Context, sessionID, line string) session.Reply {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = append(e.lines, line)
	if line == "exit" {
		return session.Reply{Text: "bye\n", Terminate: true}
	}
	return session.Reply{Text: "ok " + line + "\n"}
}

func (e *echoHandler) Terminate(ctx context.Context, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terminated = append(e.terminated, sessionID)
}

func (e *echoHandler) terminations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.terminated)
}

func connect(t *testing.T, h *echoHandler) (*websocket.Conn, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(gateway.Handler(ctx, h, zap.NewNop()))
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, cancel
}

func waitTerminated(t *testing.T, h *echoHandler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.terminations() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Expected one termination, got %d", h.terminations())
}

func TestClient_FramePerCommand(t *testing.T) {
	h := &echoHandler{}
	conn, _ := connect(t, h)

	conn.WriteMessage(websocket.TextMessage, []byte("show"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "ok show\n" {
		t.Errorf("Unexpected reply %q", msg)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("exit"))
	_, msg, err = conn.ReadMessage()
	if err != nil || string(msg) != "bye\n" {
		t.Fatalf("exit reply %q err %v", msg, err)
	}

	// Server closes after exit.
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the server to close the socket")
	}
	waitTerminated(t, h)
}

func TestClient_DisconnectTerminates(t *testing.T) {
	h := &echoHandler{}
	conn, _ := connect(t, h)

	conn.WriteMessage(websocket.TextMessage, []byte("buy 1 1"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	waitTerminated(t, h)
}

func TestClient_CancelTerminates(t *testing.T) {
	h := &echoHandler{}
	conn, cancel := connect(t, h)

	conn.WriteMessage(websocket.TextMessage, []byte("show"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatal(err)
	}
	cancel()

	waitTerminated(t, h)
}
