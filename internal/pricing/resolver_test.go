package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sofra-app/api/internal/database"
)

// mockStore implements Store with configurable behavior.
type mockStore struct {
	getProductFn        func(ctx context.Context, id uuid.UUID) (database.Product, error)
	getComboFn          func(ctx context.Context, id uuid.UUID) (database.Combo, error)
	getAddonFn          func(ctx context.Context, id uuid.UUID) (database.Addon, error)
	getEffectiveOfferFn func(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error)
}

func (m *mockStore) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	return m.getProductFn(ctx, id)
}
func (m *mockStore) GetCombo(ctx context.Context, id uuid.UUID) (database.Combo, error) {
	return m.getComboFn(ctx, id)
}
func (m *mockStore) GetAddon(ctx context.Context, id uuid.UUID) (database.Addon, error) {
	return m.getAddonFn(ctx, id)
}
func (m *mockStore) GetEffectiveOffer(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
	return m.getEffectiveOfferFn(ctx, arg)
}

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

// storeWithProduct returns a mockStore holding one active product and no
// offers. Tests override what they care about.
func storeWithProduct(productID uuid.UUID, price string) *mockStore {
	return &mockStore{
		getProductFn: func(ctx context.Context, id uuid.UUID) (database.Product, error) {
			if id == productID {
				return database.Product{ID: productID, SalePrice: makeNumeric(price), Active: true}, nil
			}
			return database.Product{}, pgx.ErrNoRows
		},
		getComboFn: func(ctx context.Context, id uuid.UUID) (database.Combo, error) {
			return database.Combo{}, pgx.ErrNoRows
		},
		getAddonFn: func(ctx context.Context, id uuid.UUID) (database.Addon, error) {
			return database.Addon{}, pgx.ErrNoRows
		},
		getEffectiveOfferFn: func(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
			return database.Offer{}, pgx.ErrNoRows
		},
	}
}

func TestProductPrice_NoOffer(t *testing.T) {
	productID := uuid.New()
	r := NewResolver(storeWithProduct(productID, "100.00"))

	price, err := r.ProductPrice(context.Background(), productID, false, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100, got %s", price)
	}
}

func TestProductPrice_RepeatableAtSameInstant(t *testing.T) {
	productID := uuid.New()
	store := storeWithProduct(productID, "100.00")
	store.getEffectiveOfferFn = func(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
		return database.Offer{
			Kind:   database.OfferKindFIXEDAMOUNT,
			Amount: makeNumeric("30.00"),
		}, nil
	}
	r := NewResolver(store)

	// Resolving twice at the same instant with no intervening writes
	// must return identical values.
	at := time.Now()
	first, err := r.ProductPrice(context.Background(), productID, false, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.ProductPrice(context.Background(), productID, false, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("expected identical prices, got %s then %s", first, second)
	}
}

func TestProductPrice_MissingProductPricesZero(t *testing.T) {
	r := NewResolver(storeWithProduct(uuid.New(), "100.00"))

	price, err := r.ProductPrice(context.Background(), uuid.New(), false, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.IsZero() {
		t.Fatalf("expected 0, got %s", price)
	}
}

func TestProductPrice_InactiveProductPricesZero(t *testing.T) {
	productID := uuid.New()
	store := storeWithProduct(productID, "100.00")
	store.getProductFn = func(ctx context.Context, id uuid.UUID) (database.Product, error) {
		return database.Product{ID: productID, SalePrice: makeNumeric("100.00"), Active: false}, nil
	}
	r := NewResolver(store)

	price, err := r.ProductPrice(context.Background(), productID, false, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.IsZero() {
		t.Fatalf("expected 0, got %s", price)
	}
}

func TestProductPrice_FixedAmountOffer(t *testing.T) {
	productID := uuid.New()
	store := storeWithProduct(productID, "100.00")
	store.getEffectiveOfferFn = func(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
		return database.Offer{
			Kind:   database.OfferKindFIXEDAMOUNT,
			Amount: makeNumeric("30.00"),
		}, nil
	}
	r := NewResolver(store)

	price, err := r.ProductPrice(context.Background(), productID, false, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected 70, got %s", price)
	}
}

func TestProductPrice_PercentageOffer(t *testing.T) {
	productID := uuid.New()
	store := storeWithProduct(productID, "100.00")
	store.getEffectiveOfferFn = func(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
		return database.Offer{
			Kind:       database.OfferKindPERCENTAGE,
			Percentage: makeNumeric("20.00"),
		}, nil
	}
	r := NewResolver(store)

	price, err := r.ProductPrice(context.Background(), productID, false, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected 80, got %s", price)
	}
}

func TestProductPrice_DiscountFlooredAtZero(t *testing.T) {
	productID := uuid.New()
	store := storeWithProduct(productID, "20.00")
	store.getEffectiveOfferFn = func(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
		return database.Offer{
			Kind:   database.OfferKindFIXEDAMOUNT,
			Amount: makeNumeric("50.00"),
		}, nil
	}
	r := NewResolver(store)

	price, err := r.ProductPrice(context.Background(), productID, false, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.IsZero() {
		t.Fatalf("expected 0, got %s", price)
	}
}

func TestProductPrice_PromotionalUsesPromoPrice(t *testing.T) {
	productID := uuid.New()
	store := storeWithProduct(productID, "100.00")
	store.getEffectiveOfferFn = func(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
		if !arg.Promotional {
			t.Fatalf("expected promotional offer lookup")
		}
		return database.Offer{
			Kind:       database.OfferKindPERCENTAGE,
			Percentage: makeNumeric("20.00"),
			PromoPrice: makeNumeric("75.00"),
		}, nil
	}
	r := NewResolver(store)

	price, err := r.ProductPrice(context.Background(), productID, true, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected 75, got %s", price)
	}
}

func TestProductPrice_PromotionalWithoutPromoPriceFallsBack(t *testing.T) {
	productID := uuid.New()
	store := storeWithProduct(productID, "100.00")
	store.getEffectiveOfferFn = func(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
		return database.Offer{
			Kind:       database.OfferKindPERCENTAGE,
			Percentage: makeNumeric("20.00"),
		}, nil
	}
	r := NewResolver(store)

	price, err := r.ProductPrice(context.Background(), productID, true, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100, got %s", price)
	}
}

func TestComboPrice(t *testing.T) {
	comboID := uuid.New()
	store := storeWithProduct(uuid.New(), "0")
	store.getComboFn = func(ctx context.Context, id uuid.UUID) (database.Combo, error) {
		if id == comboID {
			return database.Combo{ID: comboID, Price: makeNumeric("250.00"), Active: true}, nil
		}
		return database.Combo{}, pgx.ErrNoRows
	}
	r := NewResolver(store)

	price, err := r.ComboPrice(context.Background(), comboID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected 250, got %s", price)
	}
}

func TestAddonPrice_InactivePricesZero(t *testing.T) {
	addonID := uuid.New()
	store := storeWithProduct(uuid.New(), "0")
	store.getAddonFn = func(ctx context.Context, id uuid.UUID) (database.Addon, error) {
		return database.Addon{ID: addonID, SalePrice: makeNumeric("8.00"), Active: false}, nil
	}
	r := NewResolver(store)

	price, err := r.AddonPrice(context.Background(), addonID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.IsZero() {
		t.Fatalf("expected 0, got %s", price)
	}
}
