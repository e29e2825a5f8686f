package signaling

import "github.com/huddlechat/huddle/internal/protocol"

// Room is a named group of sessions permitted to mesh with one another.
// Rooms are created on first join and deleted as soon as the last member
// leaves; an empty room never exists in the registry.
type Room struct {
	Name     string
	Capacity int

	// Members is keyed by session id. Only the hub goroutine touches it.
	Members map[string]*Session
}

func newRoom(name string, capacity int) *Room {
	return &Room{
		Name:     name,
		Capacity: capacity,
		Members:  make(map[string]*Session),
	}
}

// Full reports whether another join would exceed the capacity bound.
func (r *Room) Full() bool {
	return len(r.Members) >= r.Capacity
}

// PeerIDs returns the ids of all members except the given one.
func (r *Room) PeerIDs(except string) []string {
	ids := make([]string, 0, len(r.Members))
	for id := range r.Members {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

// broadcast queues msg to every member except the given one. Delivery is
// best-effort per recipient; a full send buffer on one member does not
// block the others.
func (r *Room) broadcast(except string, msg *protocol.Message) {
	for id, member := range r.Members {
		if id == except {
			continue
		}
		member.trySend(msg)
	}
}
