package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"formpilot/internal/models"

	"github.com/gorilla/websocket"
)

// Hub pushes job status changes to connected dashboard clients.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 64),
	}
}

func (h *Hub) Start() {
	go func() {
		for message := range h.broadcast {
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}()
}

// BroadcastJobUpdate notifies every client of a job's current status.
func (h *Hub) BroadcastJobUpdate(job *models.Job) {
	update := map[string]interface{}{
		"type":   "job_update",
		"job_id": job.ID,
		"status": job.Status,
	}
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop the update rather than block the engine on a slow client.
	}
}

type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.hub.mu.Lock()
	h.hub.clients[conn] = true
	h.hub.mu.Unlock()
	log.Printf("WebSocket client connected")

	// Reads are only used to detect disconnects.
	go func() {
		defer func() {
			h.hub.mu.Lock()
			delete(h.hub.clients, conn)
			h.hub.mu.Unlock()
			conn.Close()
			log.Printf("WebSocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
