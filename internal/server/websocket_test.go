package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomrelay/internal/relay"
	"github.com/Tyrowin/roomrelay/internal/testutil"
)

const eventTimeout = 2 * time.Second

// waitForMembers blocks until room has n members.
func waitForMembers(t *testing.T, hub *relay.Hub, room string, n int) {
	t.Helper()
	testutil.Eventually(t, func() bool { return len(hub.Members(room)) == n }, eventTimeout,
		"room "+room+" never reached the expected size")
}

// TestWebSocketChatScenario tests the join and chat flow end to end: the
// existing member is told about the new one, and a chat message is echoed
// to every member of the room and nobody else.
func TestWebSocketChatScenario(t *testing.T) {
	_, hub, ts := newTestRelay(t, nil)
	url := testutil.WebSocketURL(ts.URL, "/api/socket")

	alice := testutil.Dial(t, url)
	bob := testutil.Dial(t, url)
	carol := testutil.Dial(t, url)

	testutil.JoinRoom(t, carol, "elsewhere", "carol")
	waitForMembers(t, hub, "elsewhere", 1)

	testutil.JoinRoom(t, alice, "general", "alice")
	waitForMembers(t, hub, "general", 1)
	testutil.JoinRoom(t, bob, "general", "bob")
	waitForMembers(t, hub, "general", 2)

	joined := testutil.ReadEvent(t, alice, eventTimeout)
	assert.Equal(t, "userJoined", joined.Event)
	assert.Equal(t, "bob joined", joined.Data["message"])
	assert.NotZero(t, joined.Data["timestamp"])

	testutil.ChatMessage(t, alice, "general", "hi", "alice")

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := testutil.ReadEvent(t, conn, eventTimeout)
		assert.Equal(t, "message", msg.Event)
		assert.Equal(t, "hi", msg.Data["message"])
		assert.Equal(t, "alice", msg.Data["sender"])
		assert.NotZero(t, msg.Data["timestamp"])
	}

	testutil.ExpectNoEvent(t, bob, 200*time.Millisecond)
	testutil.ExpectNoEvent(t, carol, 200*time.Millisecond)
}

// TestWebSocketPathsShareRooms tests that every configured socket path is
// served by the same hub.
func TestWebSocketPathsShareRooms(t *testing.T) {
	_, hub, ts := newTestRelay(t, nil)

	alice := testutil.Dial(t, testutil.WebSocketURL(ts.URL, "/api/socket"))
	bob := testutil.Dial(t, testutil.WebSocketURL(ts.URL, "/api/socketio"))

	testutil.JoinRoom(t, alice, "general", "alice")
	waitForMembers(t, hub, "general", 1)
	testutil.JoinRoom(t, bob, "general", "bob")
	waitForMembers(t, hub, "general", 2)

	assert.Equal(t, "bob joined", testutil.ReadEvent(t, alice, eventTimeout).Data["message"])

	testutil.ChatMessage(t, bob, "general", "across paths", "bob")
	assert.Equal(t, "across paths", testutil.ReadEvent(t, alice, eventTimeout).Data["message"])
	assert.Equal(t, "across paths", testutil.ReadEvent(t, bob, eventTimeout).Data["message"])
}

// TestWebSocketCustomSocketPath tests that SocketPaths controls the mount
// points.
func TestWebSocketCustomSocketPath(t *testing.T) {
	_, _, ts := newTestRelay(t, func(cfg *Config) {
		cfg.SocketPaths = []string{"/relay"}
	})

	conn, _, err := testutil.DialWithOrigin(testutil.WebSocketURL(ts.URL, "/relay"), testutil.DefaultOrigin)
	require.NoError(t, err)
	_ = conn.Close()

	_, status, err := testutil.DialWithOrigin(testutil.WebSocketURL(ts.URL, "/api/socket"), testutil.DefaultOrigin)
	require.Error(t, err)
	assert.NotEqual(t, http.StatusSwitchingProtocols, status)
}

// TestWebSocketDisconnectCleanup tests that a closed socket leaves every room
// and later broadcasts only reach the remaining members.
func TestWebSocketDisconnectCleanup(t *testing.T) {
	_, hub, ts := newTestRelay(t, nil)
	url := testutil.WebSocketURL(ts.URL, "/api/socket")

	alice := testutil.Dial(t, url)
	bob := testutil.Dial(t, url)

	testutil.JoinRoom(t, alice, "x", "alice")
	waitForMembers(t, hub, "x", 1)
	testutil.JoinRoom(t, bob, "x", "bob")
	waitForMembers(t, hub, "x", 2)
	testutil.ReadEvent(t, alice, eventTimeout)

	require.NoError(t, testutil.CloseWebSocket(alice))
	waitForMembers(t, hub, "x", 1)
	testutil.Eventually(t, func() bool { return hub.Stats().Connections == 1 }, eventTimeout, "alice still registered")

	testutil.ChatMessage(t, bob, "x", "anyone?", "bob")
	msg := testutil.ReadEvent(t, bob, eventTimeout)
	assert.Equal(t, "anyone?", msg.Data["message"])

	require.NoError(t, testutil.CloseWebSocket(bob))
	testutil.Eventually(t, func() bool { return hub.Stats() == relay.Stats{} }, eventTimeout, "hub not empty")
}

// TestWebSocketIgnoresInvalidEvents tests that dropped events neither answer
// nor close the connection.
func TestWebSocketIgnoresInvalidEvents(t *testing.T) {
	_, hub, ts := newTestRelay(t, nil)
	conn := testutil.Dial(t, testutil.WebSocketURL(ts.URL, "/api/socket"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	testutil.SendEvent(t, conn, "leaveRoom", map[string]string{"room": "general"})
	testutil.JoinRoom(t, conn, "", "alice")
	testutil.JoinRoom(t, conn, "general", "")
	testutil.ChatMessage(t, conn, "general", "not joined yet", "alice")

	testutil.JoinRoom(t, conn, "general", "alice")
	waitForMembers(t, hub, "general", 1)

	testutil.ChatMessage(t, conn, "general", "now joined", "alice")
	msg := testutil.ReadEvent(t, conn, eventTimeout)
	assert.Equal(t, "message", msg.Event)
	assert.Equal(t, "now joined", msg.Data["message"], "the earlier chat was dropped, not queued")
}

// TestWebSocketSingleRoomMode tests the single-room setting end to end.
func TestWebSocketSingleRoomMode(t *testing.T) {
	_, hub, ts := newTestRelay(t, func(cfg *Config) {
		cfg.SingleRoomPerConnection = true
	})
	conn := testutil.Dial(t, testutil.WebSocketURL(ts.URL, "/api/socket"))

	testutil.JoinRoom(t, conn, "x", "alice")
	waitForMembers(t, hub, "x", 1)
	testutil.JoinRoom(t, conn, "y", "alice")
	waitForMembers(t, hub, "y", 1)
	waitForMembers(t, hub, "x", 0)
}

// TestWebSocketOriginValidation tests the origin allowlist on the upgrade.
func TestWebSocketOriginValidation(t *testing.T) {
	_, _, ts := newTestRelay(t, func(cfg *Config) {
		cfg.AllowedOrigins = []string{"http://allowed.example"}
	})
	url := testutil.WebSocketURL(ts.URL, "/api/socket")

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed origin", "http://allowed.example", true},
		{"disallowed origin", "http://evil.example", false},
		{"missing origin", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, status, err := testutil.DialWithOrigin(url, tt.origin)
			if tt.ok {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusForbidden, status)
		})
	}
}

// TestWebSocketMessageSizeLimit tests that a frame over MaxMessageSize
// closes the connection and removes it from the hub.
func TestWebSocketMessageSizeLimit(t *testing.T) {
	_, hub, ts := newTestRelay(t, func(cfg *Config) {
		cfg.MaxMessageSize = 128
	})
	conn := testutil.Dial(t, testutil.WebSocketURL(ts.URL, "/api/socket"))

	testutil.JoinRoom(t, conn, "general", "alice")
	waitForMembers(t, hub, "general", 1)

	testutil.ChatMessage(t, conn, "general", strings.Repeat("a", 512), "alice")

	testutil.ExpectClosed(t, conn, eventTimeout)
	waitForMembers(t, hub, "general", 0)
}

// TestServerStartAndShutdown tests the real listener lifecycle: idempotent
// Start, serving, and a Shutdown that closes connected clients.
func TestServerStartAndShutdown(t *testing.T) {
	cfg := NewConfig()
	cfg.Port = "127.0.0.1:0"
	hub := relay.NewHub()
	srv := New(cfg, hub, nil, testLogger())

	require.NoError(t, srv.Start())
	require.NoError(t, srv.Start(), "second start is a no-op")
	addr := srv.Addr()
	require.NotEmpty(t, addr)

	resp, _ := get(t, "http://"+addr+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn := testutil.Dial(t, "ws://"+addr+"/api/socket")
	testutil.JoinRoom(t, conn, "general", "alice")
	waitForMembers(t, hub, "general", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	testutil.ExpectClosed(t, conn, eventTimeout)
	assert.Equal(t, relay.Stats{}, hub.Stats())

	_, err := hub.Connect(&nopTransport{})
	assert.ErrorIs(t, err, relay.ErrHubClosed)
}

// TestServerStartBindFailure tests that an unusable address surfaces as a
// TransportInitError.
func TestServerStartBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = taken.Close() }()

	cfg := NewConfig()
	cfg.Port = taken.Addr().String()
	srv := New(cfg, relay.NewHub(), nil, testLogger())

	err = srv.Start()
	var initErr *TransportInitError
	require.True(t, errors.As(err, &initErr), "got %v", err)
	assert.Equal(t, cfg.Port, initErr.Addr)
	assert.Empty(t, srv.Addr())
	assert.Equal(t, err, srv.Start(), "the first result is kept")
}

type nopTransport struct{}

func (nopTransport) Send([]byte) error { return nil }
func (nopTransport) Close() error      { return nil }
