package mesh

import (
	"errors"
	"fmt"
)

// ErrLinkClosed is returned when a link operation races the orchestrator
// shutting down.
var ErrLinkClosed = errors.New("peer link closed")

// LinkError wraps a negotiation failure with the operation and the peer it
// concerned. Negotiation failures never escalate past the link they hit.
type LinkError struct {
	Op   string
	Peer string
	Err  error
}

func (e *LinkError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s (peer %s): %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func newLinkError(op, peer string, err error) *LinkError {
	return &LinkError{Op: op, Peer: peer, Err: err}
}
