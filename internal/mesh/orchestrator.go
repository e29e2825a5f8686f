package mesh

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/huddlechat/huddle/internal/protocol"
)

// Signaler sends control messages toward the relay. The session controller
// implements it with its websocket connection.
type Signaler interface {
	Send(msg *protocol.Message)
}

// Hooks are the orchestrator's outward-facing callbacks. All fields are
// optional. Hooks must not block; the controller forwards them as events.
type Hooks struct {
	// ChannelOpen fires when the chat channel to a peer becomes usable.
	ChannelOpen func(peerID string)

	// ChannelClose fires when a peer's chat channel closes.
	ChannelClose func(peerID string)

	// Chat fires for every decoded inbound chat record.
	Chat func(peerID, text string)

	// Track fires when a remote media track arrives on a link.
	Track func(peerID string, track *webrtc.TrackRemote)

	// LinkDown fires after a link has been cleaned up, whether by
	// transport failure or an explicit peer_left.
	LinkDown func(peerID string)

	// Status surfaces advisory, user-visible conditions (e.g. a rejected
	// offer when the local link table is at capacity).
	Status func(text string)
}

// Config configures the orchestrator.
type Config struct {
	ICEServers []webrtc.ICEServer

	// MaxPeers is the advisory local bound on concurrent links. The relay
	// enforces the real capacity; this only avoids doomed negotiations.
	MaxPeers int

	// LocalTracks are attached to every link. When empty, each link
	// negotiates receive-only audio and video so remote media still flows.
	LocalTracks []webrtc.TrackLocal

	Log *slog.Logger
}

// Orchestrator owns the peer-link table and drives per-peer connection
// establishment. One instance exists per joined room.
type Orchestrator struct {
	cfg      Config
	signaler Signaler
	hooks    Hooks
	log      *slog.Logger

	mu     sync.Mutex
	links  map[string]*Link
	closed bool
}

// ShouldInitiate decides which side of an edge creates the offer. The
// lexicographically smaller session id always initiates, so exactly one
// offer is produced per peer pair no matter which side learned of the
// other first.
func ShouldInitiate(localID, remoteID string) bool {
	return localID < remoteID
}

// New creates an orchestrator. Hooks may be zero-valued.
func New(cfg Config, signaler Signaler, hooks Hooks) *Orchestrator {
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = protocol.RoomCapacity
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		signaler: signaler,
		hooks:    hooks,
		log:      log,
		links:    make(map[string]*Link),
	}
}

// LinkCount returns the number of live links.
func (o *Orchestrator) LinkCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.links)
}

// Links returns a display snapshot of all links, sorted by peer id.
func (o *Orchestrator) Links() []LinkInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	infos := make([]LinkInfo, 0, len(o.links))
	for _, l := range o.links {
		infos = append(infos, l.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].PeerID < infos[j].PeerID })
	return infos
}

// CreateLink establishes a link to peerID. A link that already exists is
// left alone. The initiator opens the chat channel and sends the offer;
// the responder waits for the inbound channel and offer.
func (o *Orchestrator) CreateLink(peerID string, initiator bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.createLinkLocked(peerID, initiator)
	return err
}

func (o *Orchestrator) createLinkLocked(peerID string, initiator bool) (*Link, error) {
	if o.closed {
		return nil, ErrLinkClosed
	}
	if link, ok := o.links[peerID]; ok {
		return link, nil
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: o.cfg.ICEServers})
	if err != nil {
		return nil, newLinkError("create peer connection", peerID, err)
	}

	link := &Link{peerID: peerID, initiator: initiator, pc: pc}
	o.links[peerID] = link

	if err := o.attachMedia(pc); err != nil {
		o.dropLinkLocked(link)
		return nil, err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			o.log.Debug("marshal candidate", "peer", peerID, "error", err)
			return
		}
		o.signaler.Send(&protocol.Message{
			Type:      protocol.TypeCandidate,
			To:        peerID,
			Candidate: raw,
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			o.RemoveLink(peerID)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if o.hooks.Track != nil {
			o.hooks.Track(peerID, track)
		}
	})

	if initiator {
		dc, err := pc.CreateDataChannel(protocol.ChatChannelLabel, nil)
		if err != nil {
			o.dropLinkLocked(link)
			return nil, newLinkError("create data channel", peerID, err)
		}
		o.setupChannel(link, dc)

		offer, err := pc.CreateOffer(nil)
		if err != nil {
			o.dropLinkLocked(link)
			return nil, newLinkError("create offer", peerID, err)
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			o.dropLinkLocked(link)
			return nil, newLinkError("set local description", peerID, err)
		}
		o.sendDescription(protocol.TypeOffer, peerID, pc.LocalDescription())
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != protocol.ChatChannelLabel {
				o.log.Debug("ignoring unexpected data channel", "peer", peerID, "label", dc.Label())
				return
			}
			o.mu.Lock()
			o.setupChannel(link, dc)
			o.mu.Unlock()
		})
	}

	return link, nil
}

// dropLinkLocked abandons a link that failed mid-setup.
func (o *Orchestrator) dropLinkLocked(link *Link) {
	delete(o.links, link.peerID)
	link.pc.Close()
}

func (o *Orchestrator) attachMedia(pc *webrtc.PeerConnection) error {
	if len(o.cfg.LocalTracks) == 0 {
		recvonly := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, recvonly); err != nil {
			return newLinkError("add audio transceiver", "", err)
		}
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, recvonly); err != nil {
			return newLinkError("add video transceiver", "", err)
		}
		return nil
	}
	for _, track := range o.cfg.LocalTracks {
		if _, err := pc.AddTrack(track); err != nil {
			return newLinkError("add local track", "", err)
		}
	}
	return nil
}

func (o *Orchestrator) sendDescription(msgType, peerID string, desc *webrtc.SessionDescription) {
	raw, err := json.Marshal(desc)
	if err != nil {
		o.log.Error("marshal session description", "peer", peerID, "error", err)
		return
	}
	o.signaler.Send(&protocol.Message{Type: msgType, To: peerID, SDP: raw})
}

// HandleOffer processes an inbound offer. Offers that would push the link
// table past the local bound are refused with an advisory status; the
// relay remains the authoritative enforcement point.
func (o *Orchestrator) HandleOffer(fromPeerID string, rawSDP json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(rawSDP, &desc); err != nil {
		return newLinkError("parse offer", fromPeerID, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.links[fromPeerID]; !ok && len(o.links)+1 > o.cfg.MaxPeers {
		if o.hooks.Status != nil {
			o.hooks.Status("Rejecting offer: room full")
		}
		return nil
	}

	link, err := o.createLinkLocked(fromPeerID, false)
	if err != nil {
		return err
	}

	if err := o.setRemoteLocked(link, desc); err != nil {
		return newLinkError("apply offer", fromPeerID, err)
	}

	answer, err := link.pc.CreateAnswer(nil)
	if err != nil {
		return newLinkError("create answer", fromPeerID, err)
	}
	if err := link.pc.SetLocalDescription(answer); err != nil {
		return newLinkError("set local description", fromPeerID, err)
	}
	o.sendDescription(protocol.TypeAnswer, fromPeerID, link.pc.LocalDescription())
	return nil
}

// HandleAnswer applies a remote answer to an existing link. A late or
// duplicate answer for an unknown peer is a no-op.
func (o *Orchestrator) HandleAnswer(fromPeerID string, rawSDP json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(rawSDP, &desc); err != nil {
		return newLinkError("parse answer", fromPeerID, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	link, ok := o.links[fromPeerID]
	if !ok {
		o.log.Debug("answer for unknown peer", "peer", fromPeerID)
		return nil
	}
	if err := o.setRemoteLocked(link, desc); err != nil {
		return newLinkError("apply answer", fromPeerID, err)
	}
	return nil
}

// HandleCandidate applies a trickled candidate to an existing link.
// Candidates arriving before the remote description are buffered and
// flushed once it is set; candidates for unknown peers are dropped.
func (o *Orchestrator) HandleCandidate(fromPeerID string, rawCandidate json.RawMessage) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(rawCandidate, &cand); err != nil {
		return newLinkError("parse candidate", fromPeerID, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	link, ok := o.links[fromPeerID]
	if !ok {
		o.log.Debug("candidate for unknown peer", "peer", fromPeerID)
		return nil
	}
	if !link.remoteSet {
		link.pending = append(link.pending, cand)
		return nil
	}
	if err := link.pc.AddICECandidate(cand); err != nil {
		o.log.Debug("add candidate", "peer", fromPeerID, "error", err)
	}
	return nil
}

// setRemoteLocked applies the remote description and flushes any buffered
// candidates in arrival order.
func (o *Orchestrator) setRemoteLocked(link *Link, desc webrtc.SessionDescription) error {
	if err := link.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	link.remoteSet = true
	for _, cand := range link.pending {
		if err := link.pc.AddICECandidate(cand); err != nil {
			o.log.Debug("flush candidate", "peer", link.peerID, "error", err)
		}
	}
	link.pending = nil
	return nil
}

// RemoveLink tears down the link to peerID only; the rest of the mesh is
// unaffected. Safe to call for peers that have no link.
func (o *Orchestrator) RemoveLink(peerID string) {
	o.mu.Lock()
	link, ok := o.links[peerID]
	if ok {
		delete(o.links, peerID)
	}
	o.mu.Unlock()

	if !ok {
		return
	}
	link.close()
	if o.hooks.LinkDown != nil {
		o.hooks.LinkDown(peerID)
	}
}

// Close tears down every link. Called when the room is left or the relay
// connection drops.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	links := make([]*Link, 0, len(o.links))
	for _, l := range o.links {
		links = append(links, l)
	}
	o.links = make(map[string]*Link)
	o.mu.Unlock()

	for _, link := range links {
		link.close()
		if o.hooks.LinkDown != nil {
			o.hooks.LinkDown(link.peerID)
		}
	}
}
