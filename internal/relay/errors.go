package relay

import "errors"

// Errors returned by the relay core. Callers match them with errors.Is.
var (
	// ErrUnknownConnection is returned when an operation names a connection
	// id that is not registered (or no longer is).
	ErrUnknownConnection = errors.New("relay: unknown connection")

	// ErrInvalidJoinRequest is returned for a joinRoom event with an empty
	// room or username.
	ErrInvalidJoinRequest = errors.New("relay: invalid join request")

	// ErrNotMember is returned for a chatMessage sent to a room the
	// connection has not joined.
	ErrNotMember = errors.New("relay: connection is not a member of the room")

	// ErrUnknownEvent is returned for an event name the router does not handle.
	ErrUnknownEvent = errors.New("relay: unknown event")

	// ErrMalformedEvent is returned when a frame is not a valid event envelope.
	ErrMalformedEvent = errors.New("relay: malformed event")

	// ErrDeliveryFailure wraps a per-recipient send error during fan-out.
	ErrDeliveryFailure = errors.New("relay: delivery failure")

	// ErrHubClosed is returned by Connect after Shutdown.
	ErrHubClosed = errors.New("relay: hub is shut down")

	// ErrTransportClosed is returned by a Transport that can no longer send.
	ErrTransportClosed = errors.New("relay: transport closed")

	// ErrSendBufferFull is returned by a Transport whose outbound queue is full.
	ErrSendBufferFull = errors.New("relay: send buffer full")
)
