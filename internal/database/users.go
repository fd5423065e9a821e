package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, full_name, email, hashed_password, role, restaurant_id, city, verified, active, fcm_token, deleted_at, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.HashedPassword,
		&u.Role,
		&u.RestaurantID,
		&u.City,
		&u.Verified,
		&u.Active,
		&u.FcmToken,
		&u.DeletedAt,
		&u.CreatedAt,
	)
	return u, err
}

const getUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND deleted_at IS NULL`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND deleted_at IS NULL`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

type CreateUserParams struct {
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	RestaurantID   pgtype.UUID
	City           pgtype.Text
}

const createUser = `
INSERT INTO users (full_name, email, hashed_password, role, restaurant_id, city)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.FullName, arg.Email, arg.HashedPassword, arg.Role, arg.RestaurantID, arg.City))
}

type UpdateUserFcmTokenParams struct {
	ID       uuid.UUID
	FcmToken pgtype.Text
}

const updateUserFcmToken = `
UPDATE users SET fcm_token = $2
WHERE id = $1`

func (q *Queries) UpdateUserFcmToken(ctx context.Context, arg UpdateUserFcmTokenParams) error {
	_, err := q.db.Exec(ctx, updateUserFcmToken, arg.ID, arg.FcmToken)
	return err
}

// ClearUserFcmToken drops a token the push sender reported as invalid.
const clearUserFcmToken = `
UPDATE users SET fcm_token = NULL
WHERE id = $1`

func (q *Queries) ClearUserFcmToken(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearUserFcmToken, id)
	return err
}

type CourierTokenRow struct {
	ID       uuid.UUID
	FcmToken string
}

// ListCourierTokensByCity feeds the "new delivery available" fanout:
// active, verified, non-deleted couriers in the delivery city with a
// registered push token.
const listCourierTokensByCity = `
SELECT id, fcm_token
FROM users
WHERE role = 'COURIER'
  AND city = $1
  AND active
  AND verified
  AND deleted_at IS NULL
  AND fcm_token IS NOT NULL`

func (q *Queries) ListCourierTokensByCity(ctx context.Context, city string) ([]CourierTokenRow, error) {
	rows, err := q.db.Query(ctx, listCourierTokensByCity, city)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []CourierTokenRow
	for rows.Next() {
		var t CourierTokenRow
		if err := rows.Scan(&t.ID, &t.FcmToken); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

const addressColumns = `id, user_id, label, city, lat, lon, details, created_at`

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.City, &a.Lat, &a.Lon, &a.Details, &a.CreatedAt)
	return a, err
}

const getAddress = `
SELECT ` + addressColumns + `
FROM addresses
WHERE id = $1`

func (q *Queries) GetAddress(ctx context.Context, id uuid.UUID) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getAddress, id))
}

type CreateAddressParams struct {
	UserID  uuid.UUID
	Label   pgtype.Text
	City    string
	Lat     float64
	Lon     float64
	Details pgtype.Text
}

const createAddress = `
INSERT INTO addresses (user_id, label, city, lat, lon, details)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + addressColumns

func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, createAddress,
		arg.UserID, arg.Label, arg.City, arg.Lat, arg.Lon, arg.Details))
}

const listAddressesByUser = `
SELECT ` + addressColumns + `
FROM addresses
WHERE user_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := q.db.Query(ctx, listAddressesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
