package signaling

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/huddlechat/huddle/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Enough for any SDP.
	maxMessageSize = 64 * 1024

	// Control messages per second a single session may send, with burst.
	messageRate  = 20
	messageBurst = 40
)

// Session is one relay-side connection identity. It belongs to at most one
// room at a time; room is nil until a join message has been processed.
type Session struct {
	hub  *Hub
	conn *websocket.Conn

	// ID is opaque and unguessable; peers address each other by it.
	ID string

	// room is owned by the hub goroutine.
	room *Room

	// send is a buffered channel of outbound messages, drained by writePump.
	send chan *protocol.Message

	// closed guards against double-closing send. Only the hub goroutine
	// reads or writes it.
	closed bool

	limiter *rate.Limiter
}

// trySend queues a message without blocking. Messages to a session whose
// buffer is full are dropped; the transport's own keepalive will reap a
// connection that stopped draining.
func (s *Session) trySend(msg *protocol.Message) {
	if s.closed {
		return
	}
	select {
	case s.send <- msg:
	default:
	}
}

// readPump pumps messages from the websocket connection to the hub.
//
// There is at most one reader per connection; all reads happen here.
// Malformed frames are ignored without closing the connection.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("session read error", "session", s.ID, "error", err)
			}
			return
		}

		if !s.limiter.Allow() {
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit"),
				time.Now().Add(writeWait))
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Debug("ignoring malformed message", "session", s.ID, "error", err)
			continue
		}

		s.hub.inbound <- envelope{from: s, msg: &msg}
	}
}

// writePump pumps messages from the hub to the websocket connection and
// sends periodic pings. There is at most one writer per connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel; say goodbye properly.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				slog.Debug("session write error", "session", s.ID, "error", err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
