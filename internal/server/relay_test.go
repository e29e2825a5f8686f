package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddlechat/huddle/internal/protocol"
	"github.com/huddlechat/huddle/internal/signaling"
)

func startRelay(t *testing.T, capacity int) string {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := signaling.NewHub(log, capacity)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(Handler(hub))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not shut down")
		}
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return &msg
}

// expectSilence asserts that no message arrives within the window.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("expected no message, got type=%q", msg.Type)
	}
}

// join performs the join handshake and returns the assigned id and the
// peers list.
func join(t *testing.T, conn *websocket.Conn, room string) (string, []string) {
	t.Helper()
	send(t, conn, &protocol.Message{Type: protocol.TypeJoin, Room: room})

	idMsg := recv(t, conn)
	if idMsg.Type != protocol.TypeID || idMsg.ID == "" {
		t.Fatalf("expected id message, got %+v", idMsg)
	}
	peersMsg := recv(t, conn)
	if peersMsg.Type != protocol.TypePeers {
		t.Fatalf("expected peers message, got %+v", peersMsg)
	}
	return idMsg.ID, peersMsg.Peers
}

func TestJoinHandshake(t *testing.T) {
	url := startRelay(t, 0)

	x := dial(t, url)
	xID, xPeers := join(t, x, "lobby")
	if len(xPeers) != 0 {
		t.Fatalf("first joiner peers=%v, want empty", xPeers)
	}

	y := dial(t, url)
	yID, yPeers := join(t, y, "lobby")
	if yID == xID {
		t.Fatalf("session ids must be unique, both %q", xID)
	}
	if len(yPeers) != 1 || yPeers[0] != xID {
		t.Fatalf("second joiner peers=%v, want [%s]", yPeers, xID)
	}

	newPeer := recv(t, x)
	if newPeer.Type != protocol.TypeNewPeer || newPeer.ID != yID {
		t.Fatalf("expected new_peer{%s}, got %+v", yID, newPeer)
	}
}

func TestPeerLeftOnDisconnect(t *testing.T) {
	url := startRelay(t, 0)

	x := dial(t, url)
	xID, _ := join(t, x, "lobby")

	y := dial(t, url)
	yID, _ := join(t, y, "lobby")
	recv(t, x) // new_peer for y

	y.Close()

	left := recv(t, x)
	if left.Type != protocol.TypePeerLeft || left.ID != yID {
		t.Fatalf("expected peer_left{%s}, got %+v", yID, left)
	}

	// Membership is back to {x}: a fresh joiner sees exactly x.
	z := dial(t, url)
	_, zPeers := join(t, z, "lobby")
	if len(zPeers) != 1 || zPeers[0] != xID {
		t.Fatalf("peers after leave=%v, want [%s]", zPeers, xID)
	}
}

func TestRoomCapacity(t *testing.T) {
	url := startRelay(t, 0)

	conns := make([]*websocket.Conn, 0, 5)
	ids := make(map[string]bool)
	for i := 0; i < 5; i++ {
		c := dial(t, url)
		id, peers := join(t, c, "lobby")
		if len(peers) != i {
			t.Fatalf("joiner %d saw %d peers, want %d", i+1, len(peers), i)
		}
		ids[id] = true
		conns = append(conns, c)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 distinct ids, got %d", len(ids))
	}

	sixth := dial(t, url)
	send(t, sixth, &protocol.Message{Type: protocol.TypeJoin, Room: "lobby"})

	full := recv(t, sixth)
	if full.Type != protocol.TypeRoomFull {
		t.Fatalf("expected room_full, got %+v", full)
	}

	// The rejected session's transport is closed by the relay.
	sixth.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.Message
	if err := sixth.ReadJSON(&msg); err == nil {
		t.Fatalf("expected closed connection after room_full, got %+v", msg)
	}

	// Existing members saw only the 4 accepted joins, no 6th new_peer.
	for i := 0; i < 4; i++ {
		recv(t, conns[0])
	}
	expectSilence(t, conns[0])
}

func TestRouteStampsFrom(t *testing.T) {
	url := startRelay(t, 0)

	x := dial(t, url)
	xID, _ := join(t, x, "lobby")

	y := dial(t, url)
	yID, _ := join(t, y, "lobby")
	recv(t, x) // new_peer

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	send(t, y, &protocol.Message{Type: protocol.TypeOffer, To: xID, SDP: sdp})

	offer := recv(t, x)
	if offer.Type != protocol.TypeOffer {
		t.Fatalf("expected offer, got %+v", offer)
	}
	if offer.From != yID {
		t.Fatalf("offer.From=%q, want %q", offer.From, yID)
	}
	if string(offer.SDP) != string(sdp) {
		t.Fatalf("sdp payload altered in transit: %s", offer.SDP)
	}
}

func TestRouteToUnknownTargetIsSilentlyDropped(t *testing.T) {
	url := startRelay(t, 0)

	x := dial(t, url)
	join(t, x, "lobby")

	y := dial(t, url)
	yID, _ := join(t, y, "lobby")
	recv(t, x) // new_peer

	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 127.0.0.1 4444 typ host"}`)
	send(t, x, &protocol.Message{Type: protocol.TypeCandidate, To: "never-seen", Candidate: cand})

	// Sender gets no error reply and stays functional: a follow-up
	// candidate to a real member is the next (and only) thing delivered.
	send(t, x, &protocol.Message{Type: protocol.TypeCandidate, To: yID, Candidate: cand})

	got := recv(t, y)
	if got.Type != protocol.TypeCandidate || got.To != yID {
		t.Fatalf("expected routed candidate, got %+v", got)
	}
	expectSilence(t, x)
}

func TestRoutingIsScopedToRoom(t *testing.T) {
	url := startRelay(t, 0)

	x := dial(t, url)
	join(t, x, "alpha")

	y := dial(t, url)
	yID, _ := join(t, y, "beta")

	send(t, x, &protocol.Message{
		Type: protocol.TypeOffer,
		To:   yID,
		SDP:  json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})
	expectSilence(t, y)
}

func TestEmptyRoomIsReclaimed(t *testing.T) {
	url := startRelay(t, 0)

	x := dial(t, url)
	xID, _ := join(t, x, "ephemeral")
	x.Close()

	// The unregister races with the next join; retry until the room has
	// been rebuilt from scratch.
	deadline := time.Now().Add(2 * time.Second)
	for {
		z := dial(t, url)
		zID, zPeers := join(t, z, "ephemeral")
		if zID != xID && len(zPeers) == 0 {
			return
		}
		z.Close()
		if time.Now().After(deadline) {
			t.Fatalf("room not reclaimed: peers=%v", zPeers)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestMalformedMessageIsIgnored(t *testing.T) {
	url := startRelay(t, 0)

	x := dial(t, url)
	if err := x.WriteMessage(websocket.TextMessage, []byte("this is not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The connection survives and a valid join still works.
	if id, peers := join(t, x, "lobby"); id == "" || len(peers) != 0 {
		t.Fatalf("join after malformed message failed")
	}
}

func TestSecondJoinIgnored(t *testing.T) {
	url := startRelay(t, 0)

	x := dial(t, url)
	xID, _ := join(t, x, "alpha")

	send(t, x, &protocol.Message{Type: protocol.TypeJoin, Room: "beta"})
	expectSilence(t, x)

	// Still a member of alpha.
	z := dial(t, url)
	_, zPeers := join(t, z, "alpha")
	if len(zPeers) != 1 || zPeers[0] != xID {
		t.Fatalf("peers=%v, want [%s]", zPeers, xID)
	}
}

func TestShutdownBroadcastsRoomClosed(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := signaling.NewHub(log, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(Handler(hub))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	x := dial(t, url)
	join(t, x, "lobby")

	cancel()
	<-done

	closed := recv(t, x)
	if closed.Type != protocol.TypeRoomClosed {
		t.Fatalf("expected room_closed, got %+v", closed)
	}
}
