package signaling

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/huddlechat/huddle/internal/protocol"
)

// envelope pairs an inbound control message with the session it came from.
type envelope struct {
	from *Session
	msg  *protocol.Message
}

// Hub is the authoritative room registry. All room and session state is
// owned by the single goroutine running Run; connections talk to it only
// through the register/unregister/inbound channels, so the registry is
// never mutated concurrently.
type Hub struct {
	capacity int
	log      *slog.Logger

	// rooms maps room names to live rooms. A room in this map always has
	// at least one member.
	rooms map[string]*Room

	register   chan *Session
	unregister chan *Session
	inbound    chan envelope
}

// NewHub creates a hub with the given per-room capacity. A capacity of
// zero or less means the protocol default.
func NewHub(log *slog.Logger, capacity int) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if capacity <= 0 {
		capacity = protocol.RoomCapacity
	}
	return &Hub{
		capacity:   capacity,
		log:        log,
		rooms:      make(map[string]*Room),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		inbound:    make(chan envelope, 64),
	}
}

// Admit wraps an accepted websocket connection in a Session, registers it
// and starts its pumps. The session has no room until it sends a join.
func (h *Hub) Admit(conn *websocket.Conn) *Session {
	s := &Session{
		hub:     h,
		conn:    conn,
		ID:      uuid.NewString(),
		send:    make(chan *protocol.Message, 32),
		limiter: rate.NewLimiter(messageRate, messageBurst),
	}
	h.register <- s

	go s.writePump()
	go s.readPump()
	return s
}

// Run processes hub events until ctx is cancelled, then notifies every
// connected member with room_closed and shuts the sessions down.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case s := <-h.register:
			h.log.Debug("session connected", "session", s.ID, "remote", s.conn.RemoteAddr())

		case s := <-h.unregister:
			h.leave(s)

		case env := <-h.inbound:
			h.dispatch(env.from, env.msg)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) dispatch(s *Session, msg *protocol.Message) {
	switch {
	case msg.Type == protocol.TypeJoin:
		h.join(s, msg.Room)

	case msg.IsSignal():
		h.route(s, msg)

	default:
		// Unknown types are ignored; the connection stays open.
		h.log.Debug("ignoring message", "session", s.ID, "type", msg.Type)
	}
}

// join adds a session to the named room, creating the room on demand.
// A full room gets the session a room_full reply and a closed transport;
// an accepted join gets id and peers replies and a new_peer broadcast to
// everyone already present.
func (h *Hub) join(s *Session, roomName string) {
	if roomName == "" || s.room != nil {
		return
	}

	room, ok := h.rooms[roomName]
	if !ok {
		room = newRoom(roomName, h.capacity)
		h.rooms[roomName] = room
	}

	if room.Full() {
		h.log.Info("join rejected, room full", "room", roomName, "session", s.ID)
		s.trySend(&protocol.Message{Type: protocol.TypeRoomFull})
		h.closeSession(s)
		return
	}

	s.room = room
	room.Members[s.ID] = s

	peers := room.PeerIDs(s.ID)
	s.trySend(&protocol.Message{Type: protocol.TypeID, ID: s.ID})
	s.trySend(&protocol.Message{Type: protocol.TypePeers, Peers: peers})
	room.broadcast(s.ID, &protocol.Message{Type: protocol.TypeNewPeer, ID: s.ID})

	h.log.Info("session joined room", "room", roomName, "session", s.ID, "peers", len(peers))
}

// route forwards a directed offer/answer/candidate to the target session
// in the sender's room, stamping the sender's id into From. A missing or
// departed target is a silent drop; the target may simply have left.
func (h *Hub) route(s *Session, msg *protocol.Message) {
	if s.room == nil || msg.To == "" {
		return
	}
	target, ok := s.room.Members[msg.To]
	if !ok {
		h.log.Debug("routing miss", "room", s.room.Name, "to", msg.To)
		return
	}

	fwd := *msg
	fwd.From = s.ID
	target.trySend(&fwd)
	h.log.Debug("routed", "type", msg.Type, "from", s.ID, "to", msg.To)
}

// leave handles transport closure: the session is removed from its room,
// the room is reclaimed if that emptied it, and the remaining members are
// told who left.
func (h *Hub) leave(s *Session) {
	if s.room != nil {
		room := s.room
		delete(room.Members, s.ID)
		s.room = nil

		if len(room.Members) == 0 {
			delete(h.rooms, room.Name)
			h.log.Info("room reclaimed", "room", room.Name)
		} else {
			room.broadcast(s.ID, &protocol.Message{Type: protocol.TypePeerLeft, ID: s.ID})
			h.log.Info("session left room", "room", room.Name, "session", s.ID)
		}
	}

	h.closeSession(s)
}

// closeSession closes the session's send channel, which makes writePump
// flush anything still buffered, send a close frame and drop the
// connection. Safe to call more than once from the hub goroutine.
func (h *Hub) closeSession(s *Session) {
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (h *Hub) closeAll() {
	for name, room := range h.rooms {
		for _, member := range room.Members {
			member.trySend(&protocol.Message{Type: protocol.TypeRoomClosed})
			h.closeSession(member)
		}
		delete(h.rooms, name)
	}
	h.log.Info("hub shut down")
}
