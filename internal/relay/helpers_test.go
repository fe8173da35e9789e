package relay

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport records frames in memory. A non-nil sendErr makes every Send
// fail with it.
type fakeTransport struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	closes  int
	sendErr error
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.closed {
		return ErrTransportClosed
	}
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closes++
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// received decodes every frame sent so far.
func (f *fakeTransport) received(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	events := make([]Envelope, 0, len(f.frames))
	for _, frame := range f.frames {
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		events = append(events, env)
	}
	return events
}

func decodeChat(t *testing.T, env Envelope) ChatMessage {
	t.Helper()
	require.Equal(t, EventMessage, env.Event)
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	return msg
}

func decodeJoined(t *testing.T, env Envelope) JoinNotification {
	t.Helper()
	require.Equal(t, EventUserJoined, env.Event)
	var note JoinNotification
	require.NoError(t, json.Unmarshal(env.Data, &note))
	return note
}

func rawEvent(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	require.NoError(t, err)
	return raw
}

func joinFrame(t *testing.T, room, username string) []byte {
	return rawEvent(t, EventJoinRoom, JoinRoomRequest{Room: room, Username: username})
}

func chatFrame(t *testing.T, room, message, sender string) []byte {
	return rawEvent(t, EventChatMessage, ChatMessageRequest{Room: room, Message: message, Sender: sender})
}

var fixedTime = time.UnixMilli(1_700_000_000_000)

func fixedClock() time.Time { return fixedTime }

// connect registers a fresh fake transport with h.
func connect(t *testing.T, h *Hub) (ConnectionID, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	id, err := h.Connect(transport)
	require.NoError(t, err)
	return id, transport
}
