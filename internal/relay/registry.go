package relay

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// ConnectionID identifies one live client session. It is assigned at
// register time and never reused.
type ConnectionID string

// Transport is the outbound half of a client session.
//
// Send must not block: implementations queue the frame and return
// ErrSendBufferFull or ErrTransportClosed when they cannot. Close must be
// safe to call more than once.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

// Connection is a read-only snapshot of a registered session.
type Connection struct {
	ID          ConnectionID
	DisplayName string
	Rooms       []string
}

type registration struct {
	displayName string
	transport   Transport
}

// Registry tracks every live connection. Room membership lives in Rooms;
// the registry only delegates cleanup to it on Unregister.
//
// Registry is not safe for concurrent use; the Hub serializes access.
type Registry struct {
	conns map[ConnectionID]*registration
	rooms *Rooms
	newID func() ConnectionID
}

// NewRegistry returns an empty registry whose Unregister cascades into rooms.
func NewRegistry(rooms *Rooms) *Registry {
	return &Registry{
		conns: make(map[ConnectionID]*registration),
		rooms: rooms,
		newID: func() ConnectionID { return ConnectionID(uuid.NewString()) },
	}
}

// Register adds a connection for transport and returns its fresh id. The
// connection starts with no display name and no rooms.
func (r *Registry) Register(transport Transport) ConnectionID {
	id := r.newID()
	for r.has(id) {
		id = r.newID()
	}
	r.conns[id] = &registration{transport: transport}
	return id
}

// SetDisplayName overwrites the display name of id.
func (r *Registry) SetDisplayName(id ConnectionID, name string) error {
	reg, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("set display name %s: %w", id, ErrUnknownConnection)
	}
	reg.displayName = name
	return nil
}

// Unregister removes id, drops it from every room, and returns its
// transport so the caller can close it.
func (r *Registry) Unregister(id ConnectionID) (Transport, error) {
	reg, ok := r.conns[id]
	if !ok {
		return nil, fmt.Errorf("unregister %s: %w", id, ErrUnknownConnection)
	}
	delete(r.conns, id)
	r.rooms.LeaveAll(id)
	return reg.transport, nil
}

// Get returns a snapshot of id, or ErrUnknownConnection.
func (r *Registry) Get(id ConnectionID) (Connection, error) {
	reg, ok := r.conns[id]
	if !ok {
		return Connection{}, fmt.Errorf("get %s: %w", id, ErrUnknownConnection)
	}
	return Connection{
		ID:          id,
		DisplayName: reg.displayName,
		Rooms:       r.rooms.RoomsOf(id),
	}, nil
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []ConnectionID {
	return slices.Sorted(maps.Keys(r.conns))
}

func (r *Registry) has(id ConnectionID) bool {
	_, ok := r.conns[id]
	return ok
}

func (r *Registry) transport(id ConnectionID) (Transport, bool) {
	reg, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return reg.transport, true
}

func (r *Registry) displayName(id ConnectionID) string {
	if reg, ok := r.conns[id]; ok {
		return reg.displayName
	}
	return ""
}
