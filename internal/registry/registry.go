// Package registry keeps the in-memory graph of live rooms, their listeners and the
// reverse index from connections to rooms. It is rebuilt from nothing on restart.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrRoomExists is returned by Add when the GUID is already live.
var ErrRoomExists = errors.New("registry: room already registered")

// Room is a live livestream and the gateway identifiers that back it.
type Room struct {
	GUID        string
	SessionID   int64
	HandleID    int64
	JanusRoomID int64
	HostConnID  string
	CreatedAt   time.Time
}

// Registry is safe for concurrent use. A single mutex guards all three maps so that
// listener sets and the connection index are always updated together.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]Room
	listeners map[string]map[string]struct{} // room guid -> conn ids
	connRooms map[string]map[string]struct{} // conn id -> room guids
}

func New() *Registry {
	return &Registry{
		rooms:     make(map[string]Room),
		listeners: make(map[string]map[string]struct{}),
		connRooms: make(map[string]map[string]struct{}),
	}
}

// Add registers a room and indexes its host connection.
func (r *Registry) Add(room Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.GUID]; ok {
		return ErrRoomExists
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	r.rooms[room.GUID] = room
	r.listeners[room.GUID] = make(map[string]struct{})
	if room.HostConnID != "" {
		r.index(room.HostConnID, room.GUID)
	}
	return nil
}

func (r *Registry) Get(guid string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[guid]
	return room, ok
}

// IsHost reports whether connID is the host connection of the room.
func (r *Registry) IsHost(guid, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[guid]
	return ok && room.HostConnID != "" && room.HostConnID == connID
}

// AddListener adds connID to the room's listeners and returns the new count.
// It returns false when the room is not live.
func (r *Registry) AddListener(guid, connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.listeners[guid]
	if !ok {
		return 0, false
	}
	set[connID] = struct{}{}
	r.index(connID, guid)
	return len(set), true
}

// IsListener reports whether connID is a listener of the room.
func (r *Registry) IsListener(guid, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.listeners[guid][connID]
	return ok
}

// RemoveListener removes connID from the room and returns the remaining count.
// The bool is false when connID was not a listener of the room.
func (r *Registry) RemoveListener(guid, connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.listeners[guid]
	if !ok {
		return 0, false
	}
	if _, member := set[connID]; !member {
		return len(set), false
	}
	delete(set, connID)
	if r.rooms[guid].HostConnID != connID {
		r.unindex(connID, guid)
	}
	return len(set), true
}

func (r *Registry) ListenerCount(guid string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[guid])
}

// Listeners returns a sorted snapshot of the room's listener connections.
func (r *Registry) Listeners(guid string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.listeners[guid])
}

// ConnectionRooms returns a sorted snapshot of the rooms connID hosts or listens to.
func (r *Registry) ConnectionRooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.connRooms[connID])
}

// Remove deletes the room, its listener set and every index entry pointing at it.
// It returns the removed room and the listeners it had.
func (r *Registry) Remove(guid string) (Room, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[guid]
	if !ok {
		return Room{}, nil, false
	}
	listeners := sortedKeys(r.listeners[guid])
	for _, connID := range listeners {
		r.unindex(connID, guid)
	}
	if room.HostConnID != "" {
		r.unindex(room.HostConnID, guid)
	}
	delete(r.listeners, guid)
	delete(r.rooms, guid)
	return room, listeners, true
}

// Departure describes what a dropped connection left behind.
type Departure struct {
	// Listened maps room guid to the remaining listener count.
	Listened map[string]int
	// Hosted are the rooms whose host connection dropped. They stay live.
	Hosted []string
}

// RemoveConnection drops connID from every room it participated in, in one step.
func (r *Registry) RemoveConnection(connID string) Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := Departure{Listened: make(map[string]int)}
	for _, guid := range sortedKeys(r.connRooms[connID]) {
		if set, ok := r.listeners[guid]; ok {
			if _, member := set[connID]; member {
				delete(set, connID)
				d.Listened[guid] = len(set)
			}
		}
		if room, ok := r.rooms[guid]; ok && room.HostConnID == connID {
			room.HostConnID = ""
			r.rooms[guid] = room
			d.Hosted = append(d.Hosted, guid)
		}
	}
	delete(r.connRooms, connID)
	return d
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) index(connID, guid string) {
	set, ok := r.connRooms[connID]
	if !ok {
		set = make(map[string]struct{})
		r.connRooms[connID] = set
	}
	set[guid] = struct{}{}
}

func (r *Registry) unindex(connID, guid string) {
	set, ok := r.connRooms[connID]
	if !ok {
		return
	}
	delete(set, guid)
	if len(set) == 0 {
		delete(r.connRooms, connID)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
