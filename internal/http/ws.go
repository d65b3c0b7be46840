package http

import (
	"log"
	"net/http"

	"unionmade-backend/internal/ws"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NotificationSocket upgrades the connection and registers it with the hub
// so settlement notices reach the user's open sessions live.
func (h *Handler) notificationSocket(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		if userID == "" {
			userID = r.URL.Query().Get("user")
		}
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user id")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade failed: %v", err)
			return
		}
		hub.Add(userID, conn)

		// Drain client frames until the socket closes.
		go func() {
			defer hub.Remove(userID, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
