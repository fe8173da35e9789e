package relay

import (
	"maps"
	"slices"
)

// Rooms is the room membership table. It indexes membership both by room
// and by connection so that disconnect cleanup does not scan every room.
//
// A room exists only while it has members: the last leave deletes it, so a
// zero-member room and an unknown room read the same.
//
// Rooms is not safe for concurrent use; the Hub serializes access.
type Rooms struct {
	members map[string]map[ConnectionID]struct{}
	joined  map[ConnectionID]map[string]struct{}
}

// NewRooms returns an empty membership table.
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[ConnectionID]struct{}),
		joined:  make(map[ConnectionID]map[string]struct{}),
	}
}

// Join adds id to room, creating the room if needed. Joining a room twice is
// a no-op. It reports whether membership changed.
func (t *Rooms) Join(room string, id ConnectionID) bool {
	members, ok := t.members[room]
	if !ok {
		members = make(map[ConnectionID]struct{})
		t.members[room] = members
	}
	if _, exists := members[id]; exists {
		return false
	}
	members[id] = struct{}{}

	rooms, ok := t.joined[id]
	if !ok {
		rooms = make(map[string]struct{})
		t.joined[id] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Leave removes id from room and deletes the room once it is empty. It
// reports whether membership changed.
func (t *Rooms) Leave(room string, id ConnectionID) bool {
	members, ok := t.members[room]
	if !ok {
		return false
	}
	if _, exists := members[id]; !exists {
		return false
	}

	delete(members, id)
	if len(members) == 0 {
		delete(t.members, room)
	}

	if rooms, ok := t.joined[id]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(t.joined, id)
		}
	}
	return true
}

// LeaveAll removes id from every room it belongs to and returns the rooms it
// left, sorted.
func (t *Rooms) LeaveAll(id ConnectionID) []string {
	left := t.RoomsOf(id)
	for _, room := range left {
		t.Leave(room, id)
	}
	return left
}

// MembersOf returns a sorted snapshot of the members of room. An unknown
// room has no members.
func (t *Rooms) MembersOf(room string) []ConnectionID {
	return slices.Sorted(maps.Keys(t.members[room]))
}

// IsMember reports whether id has joined room.
func (t *Rooms) IsMember(room string, id ConnectionID) bool {
	_, ok := t.members[room][id]
	return ok
}

// RoomsOf returns the sorted names of the rooms id has joined.
func (t *Rooms) RoomsOf(id ConnectionID) []string {
	return slices.Sorted(maps.Keys(t.joined[id]))
}

// Len returns the number of rooms with at least one member.
func (t *Rooms) Len() int {
	return len(t.members)
}
