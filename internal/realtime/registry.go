package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which connections are members of which rooms. A room
// exists exactly while it has members; there is no separate create/delete.
// All operations are safe for concurrent use from independent connection
// goroutines.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[uuid.UUID]struct{})}
}

// Join adds the connection to the room. Joining twice has no further effect.
func (r *Registry) Join(id uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		r.rooms[room] = members
	}
	members[id] = struct{}{}
}

// Leave removes the connection from the room. Leaving a room never joined
// is a no-op. The room is dropped once its last member leaves.
func (r *Registry) Leave(id uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(id, room)
}

// LeaveAll removes the connection from every room it had joined.
func (r *Registry) LeaveAll(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.rooms {
		r.leaveLocked(id, room)
	}
}

func (r *Registry) leaveLocked(id uuid.UUID, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Members returns the connection ids in the room; empty for unknown rooms.
func (r *Registry) Members(room string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[room]
	out := make([]uuid.UUID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Rooms returns the names of the rooms the connection has joined.
func (r *Registry) Rooms(id uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for room, members := range r.rooms {
		if _, ok := members[id]; ok {
			out = append(out, room)
		}
	}
	return out
}
