// Package pricing computes the current effective unit price for catalog
// entities. Products are subject to time-bounded offers; combos and
// addons always sell at their stored price.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sofra-app/api/internal/database"
)

// Store defines the catalog reads the resolver needs.
// Satisfied by *database.Queries; narrow interface for testability.
type Store interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetCombo(ctx context.Context, id uuid.UUID) (database.Combo, error)
	GetAddon(ctx context.Context, id uuid.UUID) (database.Addon, error)
	GetEffectiveOffer(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error)
}

// Resolver resolves effective unit prices at a given instant.
type Resolver struct {
	store Store
}

// NewResolver creates a new Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ProductPrice returns the effective unit price of a product at now.
//
// Promotional mode: an effective offer with a promo price wins, otherwise
// the base price. Normal mode: an effective offer's discount is applied
// to the base price, floored at zero.
//
// A missing or inactive product prices at zero rather than erroring;
// callers validate entity existence before trusting a zero line.
func (r *Resolver) ProductPrice(ctx context.Context, productID uuid.UUID, promotional bool, now time.Time) (decimal.Decimal, error) {
	product, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get product: %w", err)
	}
	if !product.Active {
		return decimal.Zero, nil
	}

	base := numericToDecimal(product.SalePrice)

	offer, ok, err := r.ProductOffer(ctx, productID, promotional, now)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return base, nil
	}

	if promotional {
		if offer.PromoPrice.Valid {
			return numericToDecimal(offer.PromoPrice), nil
		}
		return base, nil
	}

	var discounted decimal.Decimal
	switch offer.Kind {
	case database.OfferKindFIXEDAMOUNT:
		discounted = base.Sub(numericToDecimal(offer.Amount))
	case database.OfferKindPERCENTAGE:
		pct := numericToDecimal(offer.Percentage)
		discounted = base.Mul(decimal.NewFromInt(100).Sub(pct)).Div(decimal.NewFromInt(100))
	default:
		return base, nil
	}
	if discounted.IsNegative() {
		return decimal.Zero, nil
	}
	return discounted, nil
}

// ProductOffer returns the first offer effective for (product, mode) at
// now, if any. Ordering comes from the store; overlapping offers are a
// data-quality concern.
func (r *Resolver) ProductOffer(ctx context.Context, productID uuid.UUID, promotional bool, now time.Time) (database.Offer, bool, error) {
	offer, err := r.store.GetEffectiveOffer(ctx, database.GetEffectiveOfferParams{
		ProductID:   productID,
		Promotional: promotional,
		Now:         now,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Offer{}, false, nil
		}
		return database.Offer{}, false, fmt.Errorf("get effective offer: %w", err)
	}
	return offer, true, nil
}

// ComboPrice returns the stored combo price; combos are not subject to
// offers. Missing or inactive combos price at zero.
func (r *Resolver) ComboPrice(ctx context.Context, comboID uuid.UUID) (decimal.Decimal, error) {
	combo, err := r.store.GetCombo(ctx, comboID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get combo: %w", err)
	}
	if !combo.Active {
		return decimal.Zero, nil
	}
	return numericToDecimal(combo.Price), nil
}

// AddonPrice returns the stored addon sale price; addons are not subject
// to offers. Missing or inactive addons price at zero.
func (r *Resolver) AddonPrice(ctx context.Context, addonID uuid.UUID) (decimal.Decimal, error) {
	addon, err := r.store.GetAddon(ctx, addonID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get addon: %w", err)
	}
	if !addon.Active {
		return decimal.Zero, nil
	}
	return numericToDecimal(addon.SalePrice), nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}
