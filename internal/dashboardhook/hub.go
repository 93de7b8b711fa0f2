// Package dashboardhook provides one concrete orchestrator.Hook
// implementation: a WebSocket broadcast hub. It is not the dashboard
// itself — no HTTP routes or templates live here, only the event fan-out
// any such dashboard would subscribe to.
package dashboardhook

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mradwan/autofrotz/internal/platform/logger"
	"github.com/mradwan/autofrotz/internal/platform/optimization"
)

// Event is the envelope broadcast to every connected client: an event
// name matching one of the Hook methods, plus its JSON-encoded payload.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of connected dashboard clients and fans every
// broadcast out to all of them, dropping slow clients rather than blocking
// the turn pipeline that feeds it.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	log        *logger.Logger

	clientSendBuffer    int
	maxDashboardClients int
}

// NewHub initializes a new dashboard broadcast Hub. A nil pool falls back
// to optimization.DefaultConfig.
func NewHub(log *logger.Logger, pool *optimization.Config) *Hub {
	if pool == nil {
		pool = optimization.DefaultConfig()
	}
	return &Hub{
		broadcast:           make(chan []byte, pool.BroadcastChannelBuffer),
		register:            make(chan *Client),
		unregister:          make(chan *Client),
		clients:             make(map[*Client]bool),
		log:                 log,
		clientSendBuffer:    pool.ClientSendBuffer,
		maxDashboardClients: pool.MaxDashboardClients,
	}
}

// Run drives the Hub's register/unregister/broadcast loop until ctx is
// canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.log.Info("dashboard hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.maxDashboardClients > 0 && len(h.clients) >= h.maxDashboardClients {
				h.mu.Unlock()
				h.log.Warn("dashboard client rejected: max clients reached")
				close(client.send)
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("dashboard client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Info("dashboard client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// broadcastEvent serializes one Event and queues it for every client.
func (h *Hub) broadcastEvent(eventType string, payload any) {
	msg, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		h.log.Error("dashboard hook: failed to serialize " + eventType + ": " + err.Error())
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("dashboard hook: broadcast channel full, dropping " + eventType)
	}
}
