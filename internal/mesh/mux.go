package mesh

import (
	"github.com/pion/webrtc/v4"

	"github.com/huddlechat/huddle/internal/protocol"
)

// setupChannel wires the chat channel of a link. Called with o.mu held.
func (o *Orchestrator) setupChannel(link *Link, dc *webrtc.DataChannel) {
	link.channel = dc
	peerID := link.peerID

	dc.OnOpen(func() {
		o.log.Debug("data channel open", "peer", peerID)
		if o.hooks.ChannelOpen != nil {
			o.hooks.ChannelOpen(peerID)
		}
	})

	dc.OnClose(func() {
		o.log.Debug("data channel closed", "peer", peerID)
		if o.hooks.ChannelClose != nil {
			o.hooks.ChannelClose(peerID)
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		text, err := protocol.DecodeChat(msg.Data)
		if err != nil {
			// Bad records are dropped, never fatal.
			o.log.Debug("invalid data channel record", "peer", peerID, "error", err)
			return
		}
		if o.hooks.Chat != nil {
			o.hooks.Chat(peerID, text)
		}
	})
}

// Broadcast sends text as a chat record on every open channel and returns
// how many peers it reached. Zero means no peers are reachable yet; the
// caller decides how to surface that.
func (o *Orchestrator) Broadcast(text string) int {
	payload, err := protocol.EncodeChat(text)
	if err != nil {
		o.log.Error("encode chat payload", "error", err)
		return 0
	}

	o.mu.Lock()
	channels := make([]*webrtc.DataChannel, 0, len(o.links))
	for _, link := range o.links {
		if link.channel != nil && link.channel.ReadyState() == webrtc.DataChannelStateOpen {
			channels = append(channels, link.channel)
		}
	}
	o.mu.Unlock()

	sent := 0
	for _, dc := range channels {
		if err := dc.SendText(string(payload)); err != nil {
			o.log.Debug("chat send failed", "label", dc.Label(), "error", err)
			continue
		}
		sent++
	}
	return sent
}
