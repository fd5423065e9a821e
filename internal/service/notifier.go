package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/notify"
	"github.com/sofra-app/api/internal/ws"
)

// NotifierStore defines the reads and token maintenance the notifier needs.
type NotifierStore interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	ListCourierTokensByCity(ctx context.Context, city string) ([]database.CourierTokenRow, error)
	ClearUserFcmToken(ctx context.Context, id uuid.UUID) error
	ClearRestaurantFcmToken(ctx context.Context, id uuid.UUID) error
}

// Notifier delivers pushes and dashboard events. Every method is
// best-effort: delivery failures are logged, never propagated into
// order state, and dead tokens are cleared so devices re-register.
type Notifier struct {
	store  NotifierStore
	sender notify.Sender
	hub    *ws.Hub
}

// NewNotifier creates a Notifier. hub may be nil in tests and tooling.
func NewNotifier(store NotifierStore, sender notify.Sender, hub *ws.Hub) *Notifier {
	return &Notifier{store: store, sender: sender, hub: hub}
}

// NotifyRestaurant pushes to the restaurant's device, if registered.
func (n *Notifier) NotifyRestaurant(ctx context.Context, restaurantID uuid.UUID, msg notify.Notification) error {
	restaurant, err := n.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return err
	}
	if !restaurant.FcmToken.Valid {
		return nil
	}
	err = n.sender.SendToToken(ctx, restaurant.FcmToken.String, msg)
	if errors.Is(err, notify.ErrInvalidToken) {
		if clearErr := n.store.ClearRestaurantFcmToken(ctx, restaurantID); clearErr != nil {
			log.Printf("ERROR: clear restaurant token %s: %v", restaurantID, clearErr)
		}
		return nil
	}
	return err
}

// NotifyCustomer pushes to a customer's device, if registered.
func (n *Notifier) NotifyCustomer(ctx context.Context, userID uuid.UUID, msg notify.Notification) error {
	user, err := n.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.FcmToken.Valid {
		return nil
	}
	err = n.sender.SendToToken(ctx, user.FcmToken.String, msg)
	if errors.Is(err, notify.ErrInvalidToken) {
		if clearErr := n.store.ClearUserFcmToken(ctx, userID); clearErr != nil {
			log.Printf("ERROR: clear user token %s: %v", userID, clearErr)
		}
		return nil
	}
	return err
}

// FanoutDelivery announces an available delivery to every eligible
// courier in the address city: connected apps get it over the city's
// websocket room, the rest by push. Dead tokens are cleared as reported.
func (n *Notifier) FanoutDelivery(ctx context.Context, city string, msg notify.Notification) error {
	n.BroadcastCityEvent(city, "delivery.available", msg.Data)

	rows, err := n.store.ListCourierTokensByCity(ctx, city)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tokens := make([]string, len(rows))
	byToken := make(map[string]uuid.UUID, len(rows))
	for i, row := range rows {
		tokens[i] = row.FcmToken
		byToken[row.FcmToken] = row.ID
	}

	result, err := n.sender.SendToTokens(ctx, tokens, msg)
	if err != nil {
		return err
	}
	for _, dead := range result.InvalidTokens {
		if id, ok := byToken[dead]; ok {
			if clearErr := n.store.ClearUserFcmToken(ctx, id); clearErr != nil {
				log.Printf("ERROR: clear courier token %s: %v", id, clearErr)
			}
		}
	}
	if result.FailureCount > 0 {
		log.Printf("delivery fanout to %s: %d sent, %d failed", city, result.SuccessCount, result.FailureCount)
	}
	return nil
}

// BroadcastOrderEvent pushes an order event into the restaurant's
// dashboard room.
func (n *Notifier) BroadcastOrderEvent(restaurantID uuid.UUID, eventType string, payload any) {
	if n.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal ws event %s: %v", eventType, err)
		return
	}
	n.hub.BroadcastToRestaurant(restaurantID, ws.Event{Type: eventType, Payload: raw})
}

// BroadcastCityEvent pushes an event into a city's courier room.
func (n *Notifier) BroadcastCityEvent(city, eventType string, payload any) {
	if n.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal ws event %s: %v", eventType, err)
		return
	}
	n.hub.BroadcastToCity(city, ws.Event{Type: eventType, Payload: raw})
}
