package handler

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sofra-app/api/internal/service"
)

// Reconciler defines the service method needed by the webhook handler.
// Satisfied by *service.ReconcileService.
type Reconciler interface {
	ApplyGatewayEvent(ctx context.Context, event service.GatewayEvent) error
}

// WebhookHandler receives payment gateway callbacks.
type WebhookHandler struct {
	svc Reconciler
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(svc Reconciler) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// RegisterRoutes registers webhook endpoints on the given Chi router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/payment", h.Payment)
}

// gatewayCallback covers the JSON shape the gateway posts. The gateway
// also delivers some fields as query parameters on redirect-style
// callbacks, so the handler falls back to those.
type gatewayCallback struct {
	Obj struct {
		ID      json.Number `json:"id"`
		Success bool        `json:"success"`
		Amount  json.Number `json:"amount_cents"`
		Order   struct {
			ID json.Number `json:"id"`
		} `json:"order"`
	} `json:"obj"`
}

// Payment handles POST /webhooks/payment. It always answers 200: the
// gateway retries non-2xx responses, and replays are already handled
// idempotently downstream.
func (h *WebhookHandler) Payment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Printf("ERROR: read webhook body: %v", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	event := parseGatewayEvent(body, r)
	if event.TransactionID == "" || event.GatewayOrderID == "" {
		log.Printf("ERROR: webhook missing transaction or order id")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := h.svc.ApplyGatewayEvent(r.Context(), event); err != nil {
		log.Printf("ERROR: apply gateway event %s: %v", event.TransactionID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func parseGatewayEvent(body []byte, r *http.Request) service.GatewayEvent {
	event := service.GatewayEvent{Raw: body}

	var cb gatewayCallback
	if err := json.Unmarshal(body, &cb); err == nil && cb.Obj.ID.String() != "" {
		event.TransactionID = cb.Obj.ID.String()
		event.GatewayOrderID = cb.Obj.Order.ID.String()
		event.Success = cb.Obj.Success
		event.AmountCents, _ = cb.Obj.Amount.Int64()
		return event
	}

	// Redirect-style callbacks carry everything as form-encoded body or
	// query parameters.
	q, parseErr := url.ParseQuery(string(body))
	if parseErr != nil || q.Get("id") == "" {
		q = r.URL.Query()
	}
	event.TransactionID = q.Get("id")
	event.GatewayOrderID = q.Get("order")
	event.Success = q.Get("success") == "true"
	if amount := q.Get("amount_cents"); amount != "" {
		event.AmountCents, _ = strconv.ParseInt(amount, 10, 64)
	}
	return event
}
