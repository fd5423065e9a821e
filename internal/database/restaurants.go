package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const restaurantColumns = `id, name, city, lat, lon, active, wallet_balance, fcm_token, created_at, updated_at`

func scanRestaurant(row pgx.Row) (Restaurant, error) {
	var r Restaurant
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.City,
		&r.Lat,
		&r.Lon,
		&r.Active,
		&r.WalletBalance,
		&r.FcmToken,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

const getRestaurant = `
SELECT ` + restaurantColumns + `
FROM restaurants
WHERE id = $1`

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	return scanRestaurant(q.db.QueryRow(ctx, getRestaurant, id))
}

const getRestaurantAddress = `
SELECT id, restaurant_id, lat, lon, details
FROM restaurant_addresses
WHERE restaurant_id = $1
ORDER BY id
LIMIT 1`

func (q *Queries) GetRestaurantAddress(ctx context.Context, restaurantID uuid.UUID) (RestaurantAddress, error) {
	row := q.db.QueryRow(ctx, getRestaurantAddress, restaurantID)
	var a RestaurantAddress
	err := row.Scan(&a.ID, &a.RestaurantID, &a.Lat, &a.Lon, &a.Details)
	return a, err
}

type CreditRestaurantWalletParams struct {
	ID     uuid.UUID
	Amount pgtype.Numeric
}

const creditRestaurantWallet = `
UPDATE restaurants
SET wallet_balance = wallet_balance + $2, updated_at = NOW()
WHERE id = $1`

func (q *Queries) CreditRestaurantWallet(ctx context.Context, arg CreditRestaurantWalletParams) error {
	tag, err := q.db.Exec(ctx, creditRestaurantWallet, arg.ID, arg.Amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const clearRestaurantFcmToken = `
UPDATE restaurants SET fcm_token = NULL, updated_at = NOW()
WHERE id = $1`

func (q *Queries) ClearRestaurantFcmToken(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearRestaurantFcmToken, id)
	return err
}

// GetSetting reads one named numeric tuning value. Callers fall back to
// hardcoded defaults on pgx.ErrNoRows.
const getSetting = `
SELECT value
FROM settings
WHERE key = $1`

func (q *Queries) GetSetting(ctx context.Context, key string) (pgtype.Numeric, error) {
	var v pgtype.Numeric
	err := q.db.QueryRow(ctx, getSetting, key).Scan(&v)
	return v, err
}
