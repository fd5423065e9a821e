package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sofra-app/api/internal/middleware"
	"github.com/sofra-app/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment
// handlers. Satisfied by *service.OrderService.
type PaymentServicer interface {
	PaymentKey(ctx context.Context, actorID, orderID uuid.UUID) (*service.PaymentKeyResult, error)
}

// PaymentHandler handles payment key requests for unpaid orders.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/payment-key", h.PaymentKey)
}

type paymentKeyResponse struct {
	PaymentToken string `json:"payment_token"`
	IframeURL    string `json:"iframe_url"`
}

// PaymentKey handles POST /orders/{id}/payment-key. For friend-pays
// orders anyone who can name the order may pay it; for digital orders
// only the owner may.
func (h *PaymentHandler) PaymentKey(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.svc.PaymentKey(r.Context(), claims.UserID, orderID)
	if err != nil {
		writeServiceError(w, "payment key", err)
		return
	}
	writeJSON(w, http.StatusOK, paymentKeyResponse{
		PaymentToken: result.PaymentToken,
		IframeURL:    result.IframeURL,
	})
}
