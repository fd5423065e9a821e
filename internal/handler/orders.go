package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/enum"
	"github.com/sofra-app/api/internal/middleware"
)

// OrderServicer defines the service methods needed by order read handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (database.Order, []database.OrderItem, error)
	GetOrderByRoutingCode(ctx context.Context, code string) (database.Order, []database.OrderItem, error)
}

// StatusServicer defines the lifecycle methods needed by order handlers.
// Satisfied by *service.StatusService.
type StatusServicer interface {
	Accept(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error)
	Deny(ctx context.Context, restaurantID, orderID uuid.UUID, reason string) (database.Order, error)
	CancelByCustomer(ctx context.Context, customerID, orderID uuid.UUID) (database.Order, error)
	Complete(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error)
	AdminCancel(ctx context.Context, orderID uuid.UUID, reason string) (database.Order, error)
}

// OrderListStore defines the database methods needed by order listings.
// Satisfied by *database.Queries.
type OrderListStore interface {
	ListOrdersByCustomer(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error)
	ListOrdersByRestaurant(ctx context.Context, arg database.ListOrdersByRestaurantParams) ([]database.Order, error)
}

// OrderHandler handles order read and lifecycle endpoints.
type OrderHandler struct {
	svc    OrderServicer
	status StatusServicer
	store  OrderListStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, status StatusServicer, store OrderListStore) *OrderHandler {
	return &OrderHandler{svc: svc, status: status, store: store}
}

// RegisterCustomerRoutes registers customer-facing order endpoints.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterCustomerRoutes(r chi.Router) {
	r.Get("/", h.ListMine)
	r.Get("/code/{code}", h.GetByCode)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/cancel", h.CancelByCustomer)
}

// RegisterRestaurantRoutes registers restaurant-staff order endpoints.
// Expected to be mounted inside /restaurants/{rid}.
func (h *OrderHandler) RegisterRestaurantRoutes(r chi.Router) {
	r.Get("/", h.ListForRestaurant)
	r.Post("/{id}/accept", h.Accept)
	r.Post("/{id}/deny", h.Deny)
	r.Post("/{id}/complete", h.Complete)
}

// RegisterAdminRoutes registers admin-only order endpoints.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/{id}/cancel", h.AdminCancel)
}

// --- Request / Response types ---

type reasonRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	OrderNumber    int64               `json:"order_number"`
	RoutingCode    *string             `json:"routing_code"`
	RestaurantID   uuid.UUID           `json:"restaurant_id"`
	AddressID      uuid.UUID           `json:"address_id"`
	PaymentMethod  string              `json:"payment_method"`
	Promotional    bool                `json:"promotional"`
	Status         string              `json:"status"`
	DeliveryStatus *string             `json:"delivery_status"`
	PaymentStatus  string              `json:"payment_status"`
	StatusReason   *string             `json:"status_reason"`
	Subtotal       string              `json:"subtotal"`
	ShippingAmount string              `json:"shipping_amount"`
	DiscountAmount string              `json:"discount_amount"`
	TotalAmount    string              `json:"total_amount"`
	Items          []orderItemResponse `json:"items,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	ParentID   *string   `json:"parent_id,omitempty"`
	ItemType   string    `json:"item_type"`
	Name       string    `json:"name"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	TotalPrice string    `json:"total_price"`
	Notes      *string   `json:"notes,omitempty"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int32           `json:"limit"`
	Offset int32           `json:"offset"`
}

// --- Handlers ---

// ListMine handles GET /orders.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	limit, offset := parsePagination(r)

	orders, err := h.store.ListOrdersByCustomer(r.Context(), database.ListOrdersByCustomerParams{
		CustomerID: claims.UserID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		log.Printf("ERROR: list customer orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders, limit, offset))
}

// ListForRestaurant handles GET /restaurants/{rid}/orders?status=PENDING.
func (h *OrderHandler) ListForRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	limit, offset := parsePagination(r)

	status := pgtype.Text{}
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrdersByRestaurant(r.Context(), database.ListOrdersByRestaurantParams{
		RestaurantID: restaurantID,
		Status:       status,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		log.Printf("ERROR: list restaurant orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders, limit, offset))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	order, items, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	if !canViewOrder(claims.UserID, claims.Role, claims.RestaurantID, order) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this order"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

// GetByCode handles GET /orders/code/{code}. The routing code is the
// shareable handle; holding it is the authorization.
func (h *OrderHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing routing code"})
		return
	}

	order, items, err := h.svc.GetOrderByRoutingCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, "get order by code", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

// CancelByCustomer handles POST /orders/{id}/cancel.
func (h *OrderHandler) CancelByCustomer(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.status.CancelByCustomer(r.Context(), claims.UserID, orderID)
	if err != nil {
		writeServiceError(w, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// Accept handles POST /restaurants/{rid}/orders/{id}/accept.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := restaurantOrderParams(w, r)
	if !ok {
		return
	}
	order, err := h.status.Accept(r.Context(), restaurantID, orderID)
	if err != nil {
		writeServiceError(w, "accept order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// Deny handles POST /restaurants/{rid}/orders/{id}/deny.
func (h *OrderHandler) Deny(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := restaurantOrderParams(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.status.Deny(r.Context(), restaurantID, orderID, req.Reason)
	if err != nil {
		writeServiceError(w, "deny order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// Complete handles POST /restaurants/{rid}/orders/{id}/complete.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := restaurantOrderParams(w, r)
	if !ok {
		return
	}
	order, err := h.status.Complete(r.Context(), restaurantID, orderID)
	if err != nil {
		writeServiceError(w, "complete order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// AdminCancel handles POST /admin/orders/{id}/cancel.
func (h *OrderHandler) AdminCancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.status.AdminCancel(r.Context(), orderID, req.Reason)
	if err != nil {
		writeServiceError(w, "admin cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// --- Helpers ---

func restaurantOrderParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return restaurantID, orderID, true
}

// canViewOrder allows the customer, the restaurant's staff, the assigned
// courier, and admins.
func canViewOrder(userID uuid.UUID, role string, restaurantID uuid.UUID, order database.Order) bool {
	switch {
	case role == enum.RoleAdmin:
		return true
	case order.CustomerID == userID:
		return true
	case role == enum.RoleRestaurant && order.RestaurantID == restaurantID:
		return true
	case order.DeliveryManID.Valid && uuid.UUID(order.DeliveryManID.Bytes) == userID:
		return true
	}
	return false
}

func isValidOrderStatus(s string) bool {
	switch database.OrderStatus(s) {
	case database.OrderStatusUNPAID,
		database.OrderStatusPENDING,
		database.OrderStatusACCEPTED,
		database.OrderStatusCOMPLETED,
		database.OrderStatusSHIPPING,
		database.OrderStatusSHIPPED,
		database.OrderStatusCANCELLED,
		database.OrderStatusDENIED:
		return true
	}
	return false
}

func toOrderListResponse(orders []database.Order, limit, offset int32) orderListResponse {
	resp := orderListResponse{Orders: make([]orderResponse, len(orders)), Limit: limit, Offset: offset}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o, nil)
	}
	return resp
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		RestaurantID:   o.RestaurantID,
		AddressID:      o.AddressID,
		PaymentMethod:  string(o.PaymentMethod),
		Promotional:    o.Promotional,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		Subtotal:       numericToString(o.Subtotal),
		ShippingAmount: numericToString(o.ShippingAmount),
		DiscountAmount: numericToString(o.DiscountAmount),
		TotalAmount:    numericToString(o.TotalAmount),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.RoutingCode.Valid {
		resp.RoutingCode = &o.RoutingCode.String
	}
	if o.DeliveryStatus.Valid {
		resp.DeliveryStatus = &o.DeliveryStatus.String
	}
	if o.StatusReason.Valid {
		resp.StatusReason = &o.StatusReason.String
	}
	if len(items) > 0 {
		resp.Items = make([]orderItemResponse, len(items))
		for i, item := range items {
			resp.Items[i] = toOrderItemResponse(item)
		}
	}
	return resp
}

func toOrderItemResponse(item database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:         item.ID,
		ItemType:   string(item.ItemType),
		Name:       item.Name,
		Quantity:   item.Quantity,
		UnitPrice:  numericToString(item.UnitPrice),
		TotalPrice: numericToString(item.TotalPrice),
	}
	if item.ParentID.Valid {
		s := uuid.UUID(item.ParentID.Bytes).String()
		resp.ParentID = &s
	}
	if item.Notes.Valid {
		resp.Notes = &item.Notes.String
	}
	return resp
}
