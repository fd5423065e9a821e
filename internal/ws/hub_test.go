package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, room string) *Client {
	return &Client{
		hub:  hub,
		room: room,
		send: make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	room := restaurantRoom(uuid.New())
	client := mockClient(hub, room)

	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[room] == nil {
		t.Fatal("room not created")
	}
	if !hub.rooms[room][client] {
		t.Fatal("client not registered in room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	room := restaurantRoom(uuid.New())
	client := mockClient(hub, room)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[room] != nil {
		t.Fatal("room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToRestaurantIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	restaurant1 := uuid.New()
	restaurant2 := uuid.New()

	client1 := mockClient(hub, restaurantRoom(restaurant1))
	client2 := mockClient(hub, restaurantRoom(restaurant2))

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"order_id":"test-123"}`)
	hub.BroadcastToRestaurant(restaurant1, Event{
		Type:    "order.created",
		Payload: testPayload,
	})

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.created" {
			t.Errorf("expected type 'order.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received another restaurant's event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToCity(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	cairo1 := mockClient(hub, cityRoom("Cairo"))
	cairo2 := mockClient(hub, cityRoom("Cairo"))
	alex := mockClient(hub, cityRoom("Alexandria"))
	dashboard := mockClient(hub, restaurantRoom(uuid.New()))

	hub.register <- cairo1
	hub.register <- cairo2
	hub.register <- alex
	hub.register <- dashboard
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToCity("Cairo", Event{
		Type:    "delivery.available",
		Payload: json.RawMessage(`{"order_id":"test-456"}`),
	})

	// Both Cairo couriers receive the event
	for i, client := range []*Client{cairo1, cairo2} {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("courier%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "delivery.available" {
				t.Errorf("courier%d: expected type 'delivery.available', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("courier%d did not receive message", i+1)
		}
	}

	// Other cities and restaurant rooms stay quiet
	for _, client := range []*Client{alex, dashboard} {
		select {
		case <-client.send:
			t.Fatal("event leaked outside the city room")
		case <-time.After(50 * time.Millisecond):
			// Expected - no message received
		}
	}
}

func TestCityRoomNormalizesCase(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Stored city casing varies between registration sources.
	client := mockClient(hub, cityRoom("cairo"))
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToCity("CAIRO", Event{
		Type:    "delivery.available",
		Payload: json.RawMessage(`{}`),
	})

	select {
	case <-client.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("city rooms must match case-insensitively")
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	room := cityRoom("Cairo")
	client1 := mockClient(hub, room)
	client2 := mockClient(hub, room)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[room]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[room]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[room]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[room]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[room] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, restaurantRoom(uuid.New()))
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Broadcast to a restaurant with no connected dashboards
	hub.BroadcastToRestaurant(uuid.New(), Event{
		Type:    "order.created",
		Payload: json.RawMessage(`{"test":"data"}`),
	})

	select {
	case <-client.send:
		t.Fatal("client should not receive another room's event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
