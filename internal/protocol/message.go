package protocol

import "encoding/json"

// Message is the control envelope exchanged between clients and the relay.
// The relay only ever looks at Type, Room and To; SDP and Candidate stay
// opaque so any WebRTC client (including the web app) can put its own
// negotiation payloads in them.
type Message struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	ID        string          `json:"id,omitempty"`
	Peers     []string        `json:"peers,omitempty"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Message type constants.
const (
	TypeJoin      = "join"
	TypeID        = "id"
	TypePeers     = "peers"
	TypeNewPeer   = "new_peer"
	TypePeerLeft  = "peer_left"
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	TypeRoomFull  = "room_full"

	// TypeRoomClosed is sent to every member when the relay shuts down.
	TypeRoomClosed = "room_closed"
)

const (
	// RoomCapacity is the maximum number of concurrent members per room.
	RoomCapacity = 5

	// MinParticipants is declared by the protocol but not enforced anywhere.
	MinParticipants = 2

	// ChatChannelLabel is the label of the per-link data channel. Both ends
	// use the same label; the initiator creates it, the responder accepts it.
	ChatChannelLabel = "chat"
)

// IsSignal reports whether the message is a directed negotiation payload
// the relay should route by its To field.
func (m *Message) IsSignal() bool {
	switch m.Type {
	case TypeOffer, TypeAnswer, TypeCandidate:
		return true
	}
	return false
}
