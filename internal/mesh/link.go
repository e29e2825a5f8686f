package mesh

import (
	"github.com/pion/webrtc/v4"
)

// Link is one candidate mesh edge between the local session and a remote
// peer. At most one Link exists per remote peer id.
type Link struct {
	peerID    string
	initiator bool

	pc      *webrtc.PeerConnection
	channel *webrtc.DataChannel

	// pending buffers candidates that arrived before the remote
	// description was applied; they are flushed in arrival order.
	pending   []webrtc.ICECandidateInit
	remoteSet bool
}

// LinkInfo is a read-only snapshot of a link for display.
type LinkInfo struct {
	PeerID      string
	Initiator   bool
	State       webrtc.PeerConnectionState
	ChannelOpen bool
}

func (l *Link) info() LinkInfo {
	open := l.channel != nil && l.channel.ReadyState() == webrtc.DataChannelStateOpen
	return LinkInfo{
		PeerID:      l.peerID,
		Initiator:   l.initiator,
		State:       l.pc.ConnectionState(),
		ChannelOpen: open,
	}
}

func (l *Link) close() {
	if l.channel != nil {
		l.channel.Close()
	}
	l.pc.Close()
}
