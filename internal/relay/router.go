package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// Connect registers transport as a new connection and returns its id.
func (h *Hub) Connect(transport Transport) (ConnectionID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", ErrHubClosed
	}

	id := h.registry.Register(transport)
	h.updateGauges()
	h.logger.Info("client connected", "id", id, "connections", h.registry.Len())
	return id, nil
}

// Dispatch decodes one inbound frame from id and applies it. Frames that
// cannot be applied are dropped and the reason is returned; the connection
// stays open either way.
func (h *Hub) Dispatch(id ConnectionID, frame []byte) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return h.drop(id, metrics.ReasonMalformed, fmt.Errorf("%w: %w", ErrMalformedEvent, err))
	}

	switch env.Event {
	case EventJoinRoom:
		var req JoinRoomRequest
		if err := decodePayload(env.Data, &req); err != nil {
			return h.drop(id, metrics.ReasonMalformed, err)
		}
		return h.joinRoom(id, req)

	case EventChatMessage:
		var req ChatMessageRequest
		if err := decodePayload(env.Data, &req); err != nil {
			return h.drop(id, metrics.ReasonMalformed, err)
		}
		return h.chatMessage(id, req)

	case "":
		return h.drop(id, metrics.ReasonMalformed, fmt.Errorf("%w: missing event name", ErrMalformedEvent))

	default:
		return h.drop(id, metrics.ReasonUnknownEvent, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event))
	}
}

// Disconnect unregisters id, removes it from every room and closes its
// transport. Unknown ids are ignored.
func (h *Hub) Disconnect(id ConnectionID) {
	h.mu.Lock()
	rooms := h.rooms.RoomsOf(id)
	transport, err := h.registry.Unregister(id)
	remaining := h.registry.Len()
	h.updateGauges()
	h.mu.Unlock()

	if err != nil {
		return
	}
	if err := transport.Close(); err != nil {
		h.logger.Debug("close on disconnect", "id", id, "err", err)
	}
	h.logger.Info("client disconnected", "id", id, "rooms", rooms, "connections", remaining)
}

func (h *Hub) joinRoom(id ConnectionID, req JoinRoomRequest) error {
	if strings.TrimSpace(req.Room) == "" || strings.TrimSpace(req.Username) == "" {
		return h.drop(id, metrics.ReasonInvalidJoin, ErrInvalidJoinRequest)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.registry.SetDisplayName(id, req.Username); err != nil {
		return h.drop(id, metrics.ReasonUnknownConn, err)
	}

	if h.singleRoom {
		for _, other := range h.rooms.RoomsOf(id) {
			if other != req.Room && h.rooms.Leave(other, id) {
				h.logger.Info("room left", "id", id, "room", other)
			}
		}
	}

	h.rooms.Join(req.Room, id)
	h.metrics.EventsReceived.WithLabelValues(EventJoinRoom).Inc()
	h.logger.Info("room joined", "id", id, "username", req.Username, "room", req.Room)

	frame, err := EncodeEvent(EventUserJoined, JoinNotification{
		Message:   req.Username + " joined",
		Timestamp: h.engine.TimestampNow(),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", EventUserJoined, err)
	}

	h.engine.BroadcastToRoom(req.Room, frame, id)
	h.updateGauges()
	return nil
}

func (h *Hub) chatMessage(id ConnectionID, req ChatMessageRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.registry.has(id) {
		return h.drop(id, metrics.ReasonUnknownConn, fmt.Errorf("chat message: %w", ErrUnknownConnection))
	}
	if !h.rooms.IsMember(req.Room, id) {
		return h.drop(id, metrics.ReasonNotMember, fmt.Errorf("%w: %q", ErrNotMember, req.Room))
	}

	sender := h.registry.displayName(id)
	if req.Sender != "" && req.Sender != sender {
		h.logger.Debug("sender field replaced by display name", "id", id, "claimed", req.Sender, "sender", sender)
	}

	frame, err := EncodeEvent(EventMessage, ChatMessage{
		Message:   req.Message,
		Sender:    sender,
		Timestamp: h.engine.TimestampNow(),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", EventMessage, err)
	}

	h.metrics.EventsReceived.WithLabelValues(EventChatMessage).Inc()
	delivery := h.engine.BroadcastToRoom(req.Room, frame, "")
	h.updateGauges()
	h.logger.Info("message relayed", "id", id, "sender", sender, "room", req.Room,
		"recipients", delivery.Recipients, "failed", len(delivery.Failed))
	return nil
}

// drop counts and logs an event the router will not apply.
func (h *Hub) drop(id ConnectionID, reason string, err error) error {
	h.metrics.EventsDropped.WithLabelValues(reason).Inc()
	h.logger.Debug("event dropped", "id", id, "reason", reason, "err", err)
	return err
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return nil
}

// IsDropped reports whether err is one of the reasons Dispatch drops an event.
func IsDropped(err error) bool {
	return errors.Is(err, ErrInvalidJoinRequest) ||
		errors.Is(err, ErrNotMember) ||
		errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, ErrMalformedEvent) ||
		errors.Is(err, ErrUnknownConnection)
}
