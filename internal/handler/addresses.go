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
	"github.com/sofra-app/api/internal/middleware"
)

// AddressStore defines the database methods needed by address handlers.
type AddressStore interface {
	CreateAddress(ctx context.Context, arg database.CreateAddressParams) (database.Address, error)
	ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]database.Address, error)
}

// AddressHandler manages a customer's saved delivery addresses.
type AddressHandler struct {
	store AddressStore
}

// NewAddressHandler creates a new AddressHandler.
func NewAddressHandler(store AddressStore) *AddressHandler {
	return &AddressHandler{store: store}
}

// RegisterRoutes registers address endpoints on the given Chi router.
func (h *AddressHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
}

// --- Request / Response types ---

type createAddressRequest struct {
	Label   string  `json:"label"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Details string  `json:"details"`
}

type addressResponse struct {
	ID        uuid.UUID `json:"id"`
	Label     *string   `json:"label"`
	City      string    `json:"city"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Details   *string   `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Handlers ---

// Create handles POST /addresses.
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.City == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "city is required"})
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid coordinates"})
		return
	}

	label := pgtype.Text{}
	if req.Label != "" {
		label = pgtype.Text{String: req.Label, Valid: true}
	}
	details := pgtype.Text{}
	if req.Details != "" {
		details = pgtype.Text{String: req.Details, Valid: true}
	}

	address, err := h.store.CreateAddress(r.Context(), database.CreateAddressParams{
		UserID:  claims.UserID,
		Label:   label,
		City:    req.City,
		Lat:     req.Lat,
		Lon:     req.Lon,
		Details: details,
	})
	if err != nil {
		log.Printf("ERROR: create address: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toAddressResponse(address))
}

// List handles GET /addresses.
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	addresses, err := h.store.ListAddressesByUser(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: list addresses: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]addressResponse, len(addresses))
	for i, a := range addresses {
		resp[i] = toAddressResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toAddressResponse(a database.Address) addressResponse {
	resp := addressResponse{
		ID:        a.ID,
		City:      a.City,
		Lat:       a.Lat,
		Lon:       a.Lon,
		CreatedAt: a.CreatedAt,
	}
	if a.Label.Valid {
		resp.Label = &a.Label.String
	}
	if a.Details.Valid {
		resp.Details = &a.Details.String
	}
	return resp
}
