package session

// EventKind discriminates controller events.
type EventKind int

const (
	// EventJoined carries the locally assigned session id in PeerID.
	EventJoined EventKind = iota

	// EventPeerUp fires when the chat channel to a peer opens.
	EventPeerUp

	// EventPeerDown fires when a peer link has been cleaned up.
	EventPeerDown

	// EventChat carries an inbound chat line: PeerID says who, Text what.
	EventChat

	// EventStatus carries an advisory, user-visible status line.
	EventStatus

	// EventDisconnected is the final event before the stream closes.
	EventDisconnected
)

// Event is what the controller emits toward the UI.
type Event struct {
	Kind   EventKind
	PeerID string
	Text   string
}
