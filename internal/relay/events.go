package relay

import "encoding/json"

// Event names on the wire.
const (
	EventJoinRoom    = "joinRoom"
	EventChatMessage = "chatMessage"
	EventMessage     = "message"
	EventUserJoined  = "userJoined"
)

// Envelope is one frame on the wire: an event name and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomRequest is the payload of an inbound joinRoom event.
type JoinRoomRequest struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// ChatMessageRequest is the payload of an inbound chatMessage event.
type ChatMessageRequest struct {
	Room    string `json:"room"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// ChatMessage is the payload of an outbound message event.
type ChatMessage struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

// JoinNotification is the payload of an outbound userJoined event.
type JoinNotification struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// EncodeEvent renders an outbound frame.
func EncodeEvent(event string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}
