package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/pricing"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	pricing.Store
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	ListActiveProductsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Product, error)
	ListActiveCombosByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Combo, error)
	ListActiveAddonsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Addon, error)
}

// MenuHandler serves a restaurant's browsable menu with effective prices.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/restaurants/{rid}/menu", h.Get)
}

// --- Response types ---

type menuResponse struct {
	Restaurant  menuRestaurant `json:"restaurant"`
	Promotional bool           `json:"promotional"`
	Products    []menuProduct  `json:"products"`
	Combos      []menuCombo    `json:"combos"`
	Addons      []menuAddon    `json:"addons"`
}

type menuRestaurant struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	City   string    `json:"city"`
	Active bool      `json:"active"`
}

type menuProduct struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	BasePrice      string    `json:"base_price"`
	EffectivePrice string    `json:"effective_price"`
	OnOffer        bool      `json:"on_offer"`
}

type menuCombo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price string    `json:"price"`
}

type menuAddon struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price string    `json:"price"`
}

// --- Handlers ---

// Get handles GET /restaurants/{rid}/menu?promotional=true.
// Product prices come through the offer resolver, so the menu shows what
// the cart will actually charge.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	promotional := r.URL.Query().Get("promotional") == "true"

	restaurant, err := h.store.GetRestaurant(r.Context(), restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		log.Printf("ERROR: get restaurant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	products, err := h.store.ListActiveProductsByRestaurant(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	combos, err := h.store.ListActiveCombosByRestaurant(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list combos: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	addons, err := h.store.ListActiveAddonsByRestaurant(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list addons: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resolver := pricing.NewResolver(h.store)
	now := time.Now()

	resp := menuResponse{
		Restaurant: menuRestaurant{
			ID:     restaurant.ID,
			Name:   restaurant.Name,
			City:   restaurant.City,
			Active: restaurant.Active,
		},
		Promotional: promotional,
		Products:    []menuProduct{},
		Combos:      []menuCombo{},
		Addons:      []menuAddon{},
	}

	for _, p := range products {
		effective, err := resolver.ProductPrice(r.Context(), p.ID, promotional, now)
		if err != nil {
			log.Printf("ERROR: resolve price for product %s: %v", p.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		_, onOffer, err := resolver.ProductOffer(r.Context(), p.ID, promotional, now)
		if err != nil {
			log.Printf("ERROR: resolve offer for product %s: %v", p.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp.Products = append(resp.Products, menuProduct{
			ID:             p.ID,
			Name:           p.Name,
			BasePrice:      numericToString(p.SalePrice),
			EffectivePrice: effective.StringFixed(2),
			OnOffer:        onOffer,
		})
	}
	for _, c := range combos {
		resp.Combos = append(resp.Combos, menuCombo{ID: c.ID, Name: c.Name, Price: numericToString(c.Price)})
	}
	for _, a := range addons {
		resp.Addons = append(resp.Addons, menuAddon{ID: a.ID, Name: a.Name, Price: numericToString(a.SalePrice)})
	}

	writeJSON(w, http.StatusOK, resp)
}
