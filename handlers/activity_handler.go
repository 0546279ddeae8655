package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DeusGroup/Leadr/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type ActivityHandler struct {
	relay *services.ActivityRelay
}

func NewActivityHandler(relay *services.ActivityRelay) *ActivityHandler {
	return &ActivityHandler{
		relay: relay,
	}
}

// GetRecent returns the persisted activity feed, newest first.
func (h *ActivityHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.relay.GetRecent(ctx, limit)
	if err != nil {
		log.Printf("Activity feed fetch failed: %v", err)
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, events)
}

// Subscribe upgrades the connection and attaches it to the relay hub. The
// client receives every activity event from that point on; missed events are
// available through GetRecent.
func (h *ActivityHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Could not upgrade connection: %v", err)
		return
	}

	client := services.NewClient(h.relay.Hub(), conn)
	client.Hub.Register <- client
	go client.WritePump()
	go client.ReadPump()
}
