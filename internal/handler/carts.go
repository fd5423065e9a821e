package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/middleware"
	"github.com/sofra-app/api/internal/service"
)

// CartServicer defines the service methods needed by cart handlers.
// Satisfied by *service.CartService; narrow interface for testability.
type CartServicer interface {
	GetCart(ctx context.Context, scope service.CartScope) (*service.CartView, error)
	AddItem(ctx context.Context, req service.AddItemRequest) (*service.CartView, error)
	UpdateItemQuantity(ctx context.Context, customerID, itemID uuid.UUID, quantity int32) (*service.CartView, error)
	UpdateItemNotes(ctx context.Context, customerID, itemID uuid.UUID, notes string) (*service.CartView, error)
	RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*service.CartView, error)
	Clear(ctx context.Context, scope service.CartScope) (*service.CartView, error)
	SetDeliveryAddress(ctx context.Context, scope service.CartScope, addressID uuid.UUID) (*service.CartView, error)
}

// CartConverter is the checkout entry point.
// Satisfied by *service.OrderService.
type CartConverter interface {
	ConvertCart(ctx context.Context, req service.ConvertCartRequest) (*service.ConvertCartResult, error)
}

// CartHandler handles cart endpoints.
type CartHandler struct {
	svc       CartServicer
	converter CartConverter
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(svc CartServicer, converter CartConverter) *CartHandler {
	return &CartHandler{svc: svc, converter: converter}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
// Expected to be mounted at /carts for authenticated customers.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Put("/address", h.SetAddress)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{id}", h.UpdateItem)
	r.Delete("/items/{id}", h.RemoveItem)
	r.Post("/checkout", h.Checkout)
}

// --- Request / Response types ---

type addItemRequest struct {
	RestaurantID string   `json:"restaurant_id"`
	Promotional  bool     `json:"promotional"`
	ItemType     string   `json:"item_type"`
	ItemID       string   `json:"item_id"`
	Quantity     int32    `json:"quantity"`
	Notes        string   `json:"notes"`
	AddonIDs     []string `json:"addon_ids"`
}

type updateItemRequest struct {
	Quantity *int32  `json:"quantity"`
	Notes    *string `json:"notes"`
}

type setCartAddressRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Promotional  bool   `json:"promotional"`
	AddressID    string `json:"address_id"`
}

type checkoutRequest struct {
	RestaurantID  string `json:"restaurant_id"`
	Promotional   bool   `json:"promotional"`
	PaymentMethod string `json:"payment_method"`
}

type cartResponse struct {
	ID           uuid.UUID          `json:"id"`
	RestaurantID uuid.UUID          `json:"restaurant_id"`
	Promotional  bool               `json:"promotional"`
	Status       string             `json:"status"`
	TotalAmount  string             `json:"total_amount"`
	TotalItems   int32              `json:"total_items"`
	AddressID    *string            `json:"address_id"`
	Items        []cartLineResponse `json:"items"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

type cartLineResponse struct {
	cartItemResponse
	Addons []cartItemResponse `json:"addons"`
}

type cartItemResponse struct {
	ID         uuid.UUID `json:"id"`
	ItemType   string    `json:"item_type"`
	ProductID  *string   `json:"product_id,omitempty"`
	ComboID    *string   `json:"combo_id,omitempty"`
	AddonID    *string   `json:"addon_id,omitempty"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	TotalPrice string    `json:"total_price"`
	Notes      *string   `json:"notes,omitempty"`
}

type checkoutResponse struct {
	Order        orderResponse `json:"order"`
	PaymentToken *string       `json:"payment_token,omitempty"`
	IframeURL    *string       `json:"iframe_url,omitempty"`
}

// --- Handlers ---

// Get handles GET /carts?restaurant_id=...&promotional=true.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeFromQuery(w, r)
	if !ok {
		return
	}

	view, err := h.svc.GetCart(r.Context(), scope)
	if err != nil {
		writeServiceError(w, "get cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// AddItem handles POST /carts/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	restaurantID, err := uuid.Parse(req.RestaurantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant_id"})
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
		return
	}
	addonIDs := make([]uuid.UUID, len(req.AddonIDs))
	for i, s := range req.AddonIDs {
		addonIDs[i], err = uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon_ids"})
			return
		}
	}

	view, err := h.svc.AddItem(r.Context(), service.AddItemRequest{
		Scope: service.CartScope{
			CustomerID:   claims.UserID,
			RestaurantID: restaurantID,
			Promotional:  req.Promotional,
		},
		ItemType: database.ItemType(req.ItemType),
		ItemID:   itemID,
		Quantity: req.Quantity,
		Notes:    req.Notes,
		AddonIDs: addonIDs,
	})
	if err != nil {
		writeServiceError(w, "add cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// UpdateItem handles PATCH /carts/items/{id}. Quantity and notes can be
// changed independently.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Quantity == nil && req.Notes == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity or notes is required"})
		return
	}

	var view *service.CartView
	if req.Quantity != nil {
		view, err = h.svc.UpdateItemQuantity(r.Context(), claims.UserID, itemID, *req.Quantity)
		if err != nil {
			writeServiceError(w, "update cart item quantity", err)
			return
		}
	}
	if req.Notes != nil {
		view, err = h.svc.UpdateItemNotes(r.Context(), claims.UserID, itemID, *req.Notes)
		if err != nil {
			writeServiceError(w, "update cart item notes", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// RemoveItem handles DELETE /carts/items/{id}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	view, err := h.svc.RemoveItem(r.Context(), claims.UserID, itemID)
	if err != nil {
		writeServiceError(w, "remove cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// Clear handles DELETE /carts?restaurant_id=...&promotional=true.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeFromQuery(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Clear(r.Context(), scope)
	if err != nil {
		writeServiceError(w, "clear cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// SetAddress handles PUT /carts/address.
func (h *CartHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req setCartAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	restaurantID, err := uuid.Parse(req.RestaurantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant_id"})
		return
	}
	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address_id"})
		return
	}

	view, err := h.svc.SetDeliveryAddress(r.Context(), service.CartScope{
		CustomerID:   claims.UserID,
		RestaurantID: restaurantID,
		Promotional:  req.Promotional,
	}, addressID)
	if err != nil {
		writeServiceError(w, "set cart address", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// Checkout handles POST /carts/checkout.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	restaurantID, err := uuid.Parse(req.RestaurantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant_id"})
		return
	}
	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}

	result, err := h.converter.ConvertCart(r.Context(), service.ConvertCartRequest{
		Scope: service.CartScope{
			CustomerID:   claims.UserID,
			RestaurantID: restaurantID,
			Promotional:  req.Promotional,
		},
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeServiceError(w, "checkout", err)
		return
	}

	resp := checkoutResponse{Order: toOrderResponse(result.Order, result.Items)}
	if result.PaymentToken != "" {
		resp.PaymentToken = &result.PaymentToken
		resp.IframeURL = &result.IframeURL
	}
	writeJSON(w, http.StatusCreated, resp)
}

// --- Helpers ---

func (h *CartHandler) scopeFromQuery(w http.ResponseWriter, r *http.Request) (service.CartScope, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return service.CartScope{}, false
	}
	restaurantID, err := uuid.Parse(r.URL.Query().Get("restaurant_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant_id"})
		return service.CartScope{}, false
	}
	return service.CartScope{
		CustomerID:   claims.UserID,
		RestaurantID: restaurantID,
		Promotional:  r.URL.Query().Get("promotional") == "true",
	}, true
}

func toCartResponse(view *service.CartView) cartResponse {
	cart := view.Cart
	resp := cartResponse{
		ID:           cart.ID,
		RestaurantID: cart.RestaurantID,
		Promotional:  cart.Promotional,
		Status:       string(cart.Status),
		TotalAmount:  numericToString(cart.TotalAmount),
		TotalItems:   cart.TotalItems,
		Items:        []cartLineResponse{},
		UpdatedAt:    cart.UpdatedAt,
	}
	if cart.AddressID.Valid {
		s := uuid.UUID(cart.AddressID.Bytes).String()
		resp.AddressID = &s
	}
	for _, line := range view.Items {
		lr := cartLineResponse{cartItemResponse: toCartItemResponse(line.Item)}
		lr.Addons = make([]cartItemResponse, len(line.Addons))
		for i, addon := range line.Addons {
			lr.Addons[i] = toCartItemResponse(addon)
		}
		resp.Items = append(resp.Items, lr)
	}
	return resp
}

func toCartItemResponse(item database.CartItem) cartItemResponse {
	resp := cartItemResponse{
		ID:         item.ID,
		ItemType:   string(item.ItemType),
		Quantity:   item.Quantity,
		UnitPrice:  numericToString(item.UnitPrice),
		TotalPrice: numericToString(item.TotalPrice),
	}
	if item.ProductID.Valid {
		s := uuid.UUID(item.ProductID.Bytes).String()
		resp.ProductID = &s
	}
	if item.ComboID.Valid {
		s := uuid.UUID(item.ComboID.Bytes).String()
		resp.ComboID = &s
	}
	if item.AddonID.Valid {
		s := uuid.UUID(item.AddonID.Bytes).String()
		resp.AddonID = &s
	}
	if item.Notes.Valid {
		resp.Notes = &item.Notes.String
	}
	return resp
}
