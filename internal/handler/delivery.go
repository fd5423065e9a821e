package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/middleware"
)

// DeliveryServicer defines the service methods needed by courier
// handlers. Satisfied by *service.StatusService.
type DeliveryServicer interface {
	AvailableDeliveries(ctx context.Context, city string, limit, offset int32) ([]database.Order, error)
	AssignCourier(ctx context.Context, courierID, orderID uuid.UUID) (database.Order, error)
	MarkShipping(ctx context.Context, courierID, orderID uuid.UUID) (database.Order, error)
	MarkShipped(ctx context.Context, courierID, orderID uuid.UUID) (database.Order, error)
	CourierOrders(ctx context.Context, courierID uuid.UUID, limit, offset int32) ([]database.Order, error)
}

// DeliveryHandler handles courier-facing delivery endpoints.
type DeliveryHandler struct {
	svc DeliveryServicer
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(svc DeliveryServicer) *DeliveryHandler {
	return &DeliveryHandler{svc: svc}
}

// RegisterRoutes registers delivery endpoints on the given Chi router.
// Expected to be mounted at /deliveries with the courier role enforced.
func (h *DeliveryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/available", h.Available)
	r.Get("/mine", h.Mine)
	r.Post("/{id}/claim", h.Claim)
	r.Post("/{id}/pickup", h.Pickup)
	r.Post("/{id}/delivered", h.Delivered)
}

// Available handles GET /deliveries/available. Orders are scoped to the
// city on the courier's token.
func (h *DeliveryHandler) Available(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	limit, offset := parsePagination(r)

	orders, err := h.svc.AvailableDeliveries(r.Context(), claims.City, limit, offset)
	if err != nil {
		writeServiceError(w, "list available deliveries", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders, limit, offset))
}

// Mine handles GET /deliveries/mine.
func (h *DeliveryHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	limit, offset := parsePagination(r)

	orders, err := h.svc.CourierOrders(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		writeServiceError(w, "list courier orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders, limit, offset))
}

// Claim handles POST /deliveries/{id}/claim.
func (h *DeliveryHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "claim delivery", h.svc.AssignCourier)
}

// Pickup handles POST /deliveries/{id}/pickup.
func (h *DeliveryHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "pickup delivery", h.svc.MarkShipping)
}

// Delivered handles POST /deliveries/{id}/delivered.
func (h *DeliveryHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "mark delivered", h.svc.MarkShipped)
}

func (h *DeliveryHandler) act(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, uuid.UUID, uuid.UUID) (database.Order, error)) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := fn(r.Context(), claims.UserID, orderID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}
