// Package testutil provides helpers shared by the relay's integration tests:
// dialing the socket endpoints, sending relay events and reading them back.
package testutil

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// DefaultOrigin is the Origin header sent by Dial.
const DefaultOrigin = "http://localhost:8000"

// Event is a decoded relay frame.
type Event struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// WebSocketURL turns an httptest server URL into a ws:// URL for path.
func WebSocketURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

// DialWithOrigin opens a WebSocket connection with the given Origin header
// (none if origin is empty). The HTTP status of the handshake is returned
// even when the dial fails.
func DialWithOrigin(url, origin string) (*websocket.Conn, int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	status := 0
	if resp != nil {
		status = resp.StatusCode
		_ = resp.Body.Close()
	}
	return conn, status, err
}

// Dial connects to url with DefaultOrigin and closes the connection when the
// test ends.
func Dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := DialWithOrigin(url, DefaultOrigin)
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent writes one relay event frame.
func SendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// JoinRoom sends a joinRoom event.
func JoinRoom(t *testing.T, conn *websocket.Conn, room, username string) {
	t.Helper()
	SendEvent(t, conn, "joinRoom", map[string]string{"room": room, "username": username})
}

// ChatMessage sends a chatMessage event.
func ChatMessage(t *testing.T, conn *websocket.Conn, room, message, sender string) {
	t.Helper()
	SendEvent(t, conn, "chatMessage", map[string]string{"room": room, "message": message, "sender": sender})
}

// ReadEvent reads the next frame, failing the test if none arrives within
// timeout.
func ReadEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err, "waiting for event")

	var event Event
	require.NoError(t, json.Unmarshal(raw, &event), "frame %q", raw)
	return event
}

// ExpectNoEvent fails the test if a frame arrives within wait. A read that
// fails for any reason other than the timeout also fails the test. The
// connection is unusable for reading afterwards, because gorilla treats a
// read timeout as permanent.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))

	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", raw)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

// ExpectClosed waits for the server to close conn.
func ExpectClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("connection still open after %s", timeout)
			}
			return
		}
	}
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// Eventually polls cond until it holds or timeout passes.
func Eventually(t *testing.T, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	require.Eventually(t, cond, timeout, 10*time.Millisecond, msg)
}
