// Package relay implements the room-scoped broadcast core of the relay.
//
// The core is split into a connection Registry, a Rooms membership table, a
// broadcast Engine and the Hub, which routes decoded client events to them.
// The Hub is the only type that knows the wire format; everything below it
// deals in connection ids and opaque frames, so the core can be driven with
// fake transports in tests and by the WebSocket server in production.
package relay
