package session

import (
	"fmt"
	"log/slog"

	"github.com/huddlechat/huddle/internal/mesh"
	"github.com/huddlechat/huddle/internal/protocol"
)

// Transport is the controller's view of the relay connection.
type Transport interface {
	Send(msg *protocol.Message)
	Incoming() <-chan *protocol.Message
	Close()
}

// Controller owns one relay connection: it drives the join handshake and
// feeds incoming control messages to the orchestrator. The UI consumes its
// event stream.
type Controller struct {
	transport Transport
	orch      *mesh.Orchestrator
	room      string
	maxPeers  int
	log       *slog.Logger

	// localID is set once the relay replies with an id message. Only the
	// dispatch loop touches it.
	localID string

	events chan Event
}

// NewController wires a controller and its orchestrator together. The
// orchestrator signals through the transport and reports back through the
// controller's event stream.
func NewController(transport Transport, meshCfg mesh.Config, room string) *Controller {
	c := &Controller{
		transport: transport,
		room:      room,
		maxPeers:  meshCfg.MaxPeers,
		log:       meshCfg.Log,
		events:    make(chan Event, 256),
	}
	if c.maxPeers <= 0 {
		c.maxPeers = protocol.RoomCapacity
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	c.orch = mesh.New(meshCfg, transport, mesh.Hooks{
		ChannelOpen: func(peerID string) {
			c.emit(Event{Kind: EventPeerUp, PeerID: peerID})
		},
		Chat: func(peerID, text string) {
			c.emit(Event{Kind: EventChat, PeerID: peerID, Text: text})
		},
		LinkDown: func(peerID string) {
			c.emit(Event{Kind: EventPeerDown, PeerID: peerID})
		},
		Status: func(text string) {
			c.emit(Event{Kind: EventStatus, Text: text})
		},
	})
	return c
}

// Events returns the controller's event stream. It is closed after the
// final EventDisconnected.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Broadcast sends a chat line to every connected peer and returns the
// number of peers reached.
func (c *Controller) Broadcast(text string) int {
	return c.orch.Broadcast(text)
}

// Links exposes the current mesh snapshot for display.
func (c *Controller) Links() []mesh.LinkInfo {
	return c.orch.Links()
}

// Close tears the relay connection down; Run then unwinds through the
// normal disconnect path.
func (c *Controller) Close() {
	c.transport.Close()
}

// Run joins the room and dispatches relay messages until the connection
// drops, then tears down every peer link. It blocks; run it in its own
// goroutine and consume Events.
func (c *Controller) Run() {
	c.transport.Send(&protocol.Message{Type: protocol.TypeJoin, Room: c.room})

	for msg := range c.transport.Incoming() {
		c.dispatch(msg)
	}

	// Relay connection gone: cascade to all peer links.
	c.orch.Close()
	c.emit(Event{Kind: EventDisconnected})
	close(c.events)
}

func (c *Controller) dispatch(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeID:
		c.localID = msg.ID
		c.emit(Event{Kind: EventJoined, PeerID: msg.ID})

	case protocol.TypePeers:
		c.handlePeers(msg.Peers)

	case protocol.TypeNewPeer:
		c.handleNewPeer(msg.ID)

	case protocol.TypePeerLeft:
		if msg.ID != "" {
			c.orch.RemoveLink(msg.ID)
		}

	case protocol.TypeOffer:
		if err := c.orch.HandleOffer(msg.From, msg.SDP); err != nil {
			c.log.Warn("handle offer", "peer", msg.From, "error", err)
		}

	case protocol.TypeAnswer:
		if err := c.orch.HandleAnswer(msg.From, msg.SDP); err != nil {
			c.log.Warn("handle answer", "peer", msg.From, "error", err)
		}

	case protocol.TypeCandidate:
		if err := c.orch.HandleCandidate(msg.From, msg.Candidate); err != nil {
			c.log.Warn("handle candidate", "peer", msg.From, "error", err)
		}

	case protocol.TypeRoomFull:
		c.emit(Event{Kind: EventStatus, Text: "Room is full"})
		c.transport.Close()

	case protocol.TypeRoomClosed:
		c.emit(Event{Kind: EventStatus, Text: "Room closed by server"})
		c.transport.Close()

	default:
		c.log.Debug("ignoring message", "type", msg.Type)
	}
}

// handlePeers reacts to the initial member list: the advisory capacity
// check first, then one link per peer the local side is elected to
// initiate toward. Peers that sort before the local id will offer to us.
func (c *Controller) handlePeers(peers []string) {
	if len(peers)+1 > c.maxPeers {
		c.emit(Event{Kind: EventStatus, Text: fmt.Sprintf("Room full (max %d)", c.maxPeers)})
		c.transport.Close()
		return
	}

	for _, peerID := range peers {
		if peerID == c.localID {
			continue
		}
		c.connectTo(peerID)
	}
}

func (c *Controller) handleNewPeer(peerID string) {
	if peerID == "" || peerID == c.localID {
		return
	}
	if c.orch.LinkCount()+1 > c.maxPeers {
		c.emit(Event{Kind: EventStatus, Text: fmt.Sprintf("Room full (max %d)", c.maxPeers)})
		return
	}
	c.connectTo(peerID)
	c.emit(Event{Kind: EventStatus, Text: "Peer joined: " + peerID})
}

func (c *Controller) connectTo(peerID string) {
	if !mesh.ShouldInitiate(c.localID, peerID) {
		// The other side offers; our link is created when it arrives.
		return
	}
	if err := c.orch.CreateLink(peerID, true); err != nil {
		c.log.Warn("create link", "peer", peerID, "error", err)
		c.emit(Event{Kind: EventStatus, Text: "Failed to connect to peer " + peerID})
	}
}

// emit never blocks the dispatch loop. When the UI stops draining,
// advisory events are shed outright; a chat line instead displaces the
// oldest queued event so the newest text still reaches the UI.
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
		return
	default:
	}
	if ev.Kind != EventChat {
		return
	}
	select {
	case <-c.events:
	default:
	}
	select {
	case c.events <- ev:
	default:
	}
}
