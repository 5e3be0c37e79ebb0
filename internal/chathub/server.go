// internal/chathub/server.go
// HTTP upgrade entrypoint, grounded on the teacher's
// internal/messaging/websocket.go upgrader configuration.

package chathub

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement belongs to the edge (reverse proxy/CORS
		// policy); the hub accepts any origin that reaches it.
		return true
	},
}

// ServeWS upgrades one HTTP request to a WebSocket connection and hands it
// to the hub. The caller mounts this at the chat endpoint, unauthenticated
// — the first frame over the socket must be `auth` (spec.md §4.5).
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
	}
}
