package main

import (
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// WebSocket endpoint: /ws/game/{room_id}?player_id=&binary=
	mux.HandleFunc("/ws/game/", func(w http.ResponseWriter, r *http.Request) {
		roomID := strings.TrimPrefix(r.URL.Path, "/ws/game/")
		if roomID == "" || strings.Contains(roomID, "/") {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		// An unknown player id degrades to an anonymous spectator; the
		// connection still receives broadcasts but cannot play.
		playerID := r.URL.Query().Get("player_id")
		if playerID != "" {
			exists, err := hub.db.PlayerExists(playerID)
			if err != nil {
				log.Printf("player lookup: %v", err)
				exists = false
			}
			if !exists {
				log.Printf("unknown player %q, joining as spectator", playerID)
				playerID = ""
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, uuid.NewString(), ip)
		client.playerID = playerID
		client.binary = r.URL.Query().Get("binary") == "1"
		client.room = hub.rooms.Join(roomID, client, playerID)

		go client.WritePump()

		// queue init before the read pump starts so it always precedes
		// any frame triggered by the client's own messages
		client.sendInit()
		go client.ReadPump()
	})

	return mux
}
