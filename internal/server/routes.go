package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/huddlechat/huddle/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The relay routes opaque negotiation payloads between peers who
	// already share a room name; cross-origin browser clients are allowed.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades requests to websocket
// sessions and hands them to the hub.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "error", err)
			return
		}
		hub.Admit(conn)
	}
}

// Handler builds the relay's HTTP mux: the websocket endpoint at / and /ws
// plus a plain-text health endpoint.
func Handler(hub *signaling.Hub) http.Handler {
	mux := http.NewServeMux()
	ws := ServeWs(hub)
	mux.HandleFunc("/", ws)
	mux.HandleFunc("/ws", ws)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Signaling relay is healthy."))
	})
	return mux
}
