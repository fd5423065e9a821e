package ws

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomEvent is an internal struct for routing events to one room
type roomEvent struct {
	Room  string
	Event Event
}

// Room keys. Restaurant dashboards subscribe to their restaurant's
// order feed; couriers subscribe to the delivery feed for their city.
func restaurantRoom(restaurantID uuid.UUID) string {
	return "restaurant:" + restaurantID.String()
}

func cityRoom(city string) string {
	return "city:" + strings.ToLower(strings.TrimSpace(city))
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by room key
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *roomEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Room]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to every client in the room
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.Room], client)
					if len(h.rooms[event.Room]) == 0 {
						delete(h.rooms, event.Room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRestaurant sends an event to all dashboards watching one
// restaurant's order feed.
func (h *Hub) BroadcastToRestaurant(restaurantID uuid.UUID, event Event) {
	h.broadcast <- &roomEvent{
		Room:  restaurantRoom(restaurantID),
		Event: event,
	}
}

// BroadcastToCity sends an event to every courier connected for a city.
func (h *Hub) BroadcastToCity(city string, event Event) {
	h.broadcast <- &roomEvent{
		Room:  cityRoom(city),
		Event: event,
	}
}
