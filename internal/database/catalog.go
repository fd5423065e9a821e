package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const getProduct = `
SELECT id, restaurant_id, name, sale_price, active, created_at
FROM products
WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, id)
	var p Product
	err := row.Scan(&p.ID, &p.RestaurantID, &p.Name, &p.SalePrice, &p.Active, &p.CreatedAt)
	return p, err
}

const listActiveProductsByRestaurant = `
SELECT id, restaurant_id, name, sale_price, active, created_at
FROM products
WHERE restaurant_id = $1 AND active
ORDER BY name`

func (q *Queries) ListActiveProductsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listActiveProductsByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.RestaurantID, &p.Name, &p.SalePrice, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getCombo = `
SELECT id, restaurant_id, name, price, active, created_at
FROM combos
WHERE id = $1`

func (q *Queries) GetCombo(ctx context.Context, id uuid.UUID) (Combo, error) {
	row := q.db.QueryRow(ctx, getCombo, id)
	var c Combo
	err := row.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.Price, &c.Active, &c.CreatedAt)
	return c, err
}

const listActiveCombosByRestaurant = `
SELECT id, restaurant_id, name, price, active, created_at
FROM combos
WHERE restaurant_id = $1 AND active
ORDER BY name`

func (q *Queries) ListActiveCombosByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Combo, error) {
	rows, err := q.db.Query(ctx, listActiveCombosByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Combo
	for rows.Next() {
		var c Combo
		if err := rows.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.Price, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getAddon = `
SELECT id, restaurant_id, name, sale_price, active, created_at
FROM addons
WHERE id = $1`

func (q *Queries) GetAddon(ctx context.Context, id uuid.UUID) (Addon, error) {
	row := q.db.QueryRow(ctx, getAddon, id)
	var a Addon
	err := row.Scan(&a.ID, &a.RestaurantID, &a.Name, &a.SalePrice, &a.Active, &a.CreatedAt)
	return a, err
}

const listActiveAddonsByRestaurant = `
SELECT id, restaurant_id, name, sale_price, active, created_at
FROM addons
WHERE restaurant_id = $1 AND active
ORDER BY name`

func (q *Queries) ListActiveAddonsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Addon, error) {
	rows, err := q.db.Query(ctx, listActiveAddonsByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Addon
	for rows.Next() {
		var a Addon
		if err := rows.Scan(&a.ID, &a.RestaurantID, &a.Name, &a.SalePrice, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

type GetEffectiveOfferParams struct {
	ProductID   uuid.UUID
	Promotional bool
	Now         time.Time
}

// getEffectiveOffer takes the first match by creation order. Overlapping
// effective offers for the same (product, mode) are a data-quality concern,
// not resolved here.
const getEffectiveOffer = `
SELECT id, product_id, kind, amount, percentage, promo_price, starts_at, ends_at, promotional, active, created_at
FROM offers
WHERE product_id = $1
  AND promotional = $2
  AND active
  AND (starts_at IS NULL OR starts_at <= $3)
  AND (ends_at IS NULL OR ends_at >= $3)
ORDER BY created_at, id
LIMIT 1`

func (q *Queries) GetEffectiveOffer(ctx context.Context, arg GetEffectiveOfferParams) (Offer, error) {
	row := q.db.QueryRow(ctx, getEffectiveOffer, arg.ProductID, arg.Promotional, arg.Now)
	return scanOffer(row)
}

func scanOffer(row pgx.Row) (Offer, error) {
	var o Offer
	err := row.Scan(
		&o.ID,
		&o.ProductID,
		&o.Kind,
		&o.Amount,
		&o.Percentage,
		&o.PromoPrice,
		&o.StartsAt,
		&o.EndsAt,
		&o.Promotional,
		&o.Active,
		&o.CreatedAt,
	)
	return o, err
}
