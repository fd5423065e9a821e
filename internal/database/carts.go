package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const cartColumns = `id, customer_id, restaurant_id, promotional, status, total_amount, total_items, address_id, created_at, updated_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(
		&c.ID,
		&c.CustomerID,
		&c.RestaurantID,
		&c.Promotional,
		&c.Status,
		&c.TotalAmount,
		&c.TotalItems,
		&c.AddressID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

type ActiveCartParams struct {
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Promotional  bool
}

const getActiveCart = `
SELECT ` + cartColumns + `
FROM carts
WHERE customer_id = $1 AND restaurant_id = $2 AND promotional = $3 AND status = 'ACTIVE'`

func (q *Queries) GetActiveCart(ctx context.Context, arg ActiveCartParams) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getActiveCart, arg.CustomerID, arg.RestaurantID, arg.Promotional))
}

// GetActiveCartForUpdate locks the cart row, serializing concurrent
// mutations of the same cart scope.
const getActiveCartForUpdate = getActiveCart + `
FOR UPDATE`

func (q *Queries) GetActiveCartForUpdate(ctx context.Context, arg ActiveCartParams) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getActiveCartForUpdate, arg.CustomerID, arg.RestaurantID, arg.Promotional))
}

const getCartForUpdate = `
SELECT ` + cartColumns + `
FROM carts
WHERE id = $1
FOR UPDATE`

func (q *Queries) GetCartForUpdate(ctx context.Context, id uuid.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getCartForUpdate, id))
}

// CreateCart relies on the partial unique index on
// (customer_id, restaurant_id, promotional) WHERE status = 'ACTIVE' to
// enforce the at-most-one-active-cart invariant under races.
const createCart = `
INSERT INTO carts (customer_id, restaurant_id, promotional, status, total_amount, total_items)
VALUES ($1, $2, $3, 'ACTIVE', 0, 0)
RETURNING ` + cartColumns

func (q *Queries) CreateCart(ctx context.Context, arg ActiveCartParams) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, createCart, arg.CustomerID, arg.RestaurantID, arg.Promotional))
}

type SetCartAddressParams struct {
	ID        uuid.UUID
	AddressID pgtype.UUID
}

const setCartAddress = `
UPDATE carts SET address_id = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + cartColumns

func (q *Queries) SetCartAddress(ctx context.Context, arg SetCartAddressParams) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, setCartAddress, arg.ID, arg.AddressID))
}

type UpdateCartTotalsParams struct {
	ID          uuid.UUID
	TotalAmount pgtype.Numeric
	TotalItems  int32
}

const updateCartTotals = `
UPDATE carts SET total_amount = $2, total_items = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + cartColumns

func (q *Queries) UpdateCartTotals(ctx context.Context, arg UpdateCartTotalsParams) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, updateCartTotals, arg.ID, arg.TotalAmount, arg.TotalItems))
}

// MarkCartOrdered is the mutual-exclusion point for order conversion: a
// second conversion attempt sees no ACTIVE cart and fails.
const markCartOrdered = `
UPDATE carts SET status = 'ORDERED', updated_at = NOW()
WHERE id = $1 AND status = 'ACTIVE'`

func (q *Queries) MarkCartOrdered(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, markCartOrdered, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const markCartItemsOrdered = `
UPDATE cart_items SET status = 'ORDERED'
WHERE cart_id = $1 AND status = 'ACTIVE'`

func (q *Queries) MarkCartItemsOrdered(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, markCartItemsOrdered, cartID)
	return err
}

const cartItemColumns = `id, cart_id, parent_id, item_type, product_id, combo_id, addon_id, quantity, unit_price, total_price, notes, status, created_at`

func scanCartItem(row pgx.Row) (CartItem, error) {
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.CartID,
		&i.ParentID,
		&i.ItemType,
		&i.ProductID,
		&i.ComboID,
		&i.AddonID,
		&i.Quantity,
		&i.UnitPrice,
		&i.TotalPrice,
		&i.Notes,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const getCartItem = `
SELECT ` + cartItemColumns + `
FROM cart_items
WHERE id = $1`

func (q *Queries) GetCartItem(ctx context.Context, id uuid.UUID) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, getCartItem, id))
}

const listActiveCartItems = `
SELECT ` + cartItemColumns + `
FROM cart_items
WHERE cart_id = $1 AND status = 'ACTIVE'
ORDER BY created_at, id`

func (q *Queries) ListActiveCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listActiveCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type CreateCartItemParams struct {
	CartID     uuid.UUID
	ParentID   pgtype.UUID
	ItemType   ItemType
	ProductID  pgtype.UUID
	ComboID    pgtype.UUID
	AddonID    pgtype.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
	TotalPrice pgtype.Numeric
	Notes      pgtype.Text
}

const createCartItem = `
INSERT INTO cart_items (cart_id, parent_id, item_type, product_id, combo_id, addon_id, quantity, unit_price, total_price, notes, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'ACTIVE')
RETURNING ` + cartItemColumns

func (q *Queries) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, createCartItem,
		arg.CartID,
		arg.ParentID,
		arg.ItemType,
		arg.ProductID,
		arg.ComboID,
		arg.AddonID,
		arg.Quantity,
		arg.UnitPrice,
		arg.TotalPrice,
		arg.Notes,
	))
}

type UpdateCartItemQuantityParams struct {
	ID         uuid.UUID
	Quantity   int32
	TotalPrice pgtype.Numeric
}

const updateCartItemQuantity = `
UPDATE cart_items SET quantity = $2, total_price = $3
WHERE id = $1 AND status = 'ACTIVE'
RETURNING ` + cartItemColumns

func (q *Queries) UpdateCartItemQuantity(ctx context.Context, arg UpdateCartItemQuantityParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, updateCartItemQuantity, arg.ID, arg.Quantity, arg.TotalPrice))
}

type UpdateCartItemNotesParams struct {
	ID    uuid.UUID
	Notes pgtype.Text
}

const updateCartItemNotes = `
UPDATE cart_items SET notes = $2
WHERE id = $1 AND status = 'ACTIVE'
RETURNING ` + cartItemColumns

func (q *Queries) UpdateCartItemNotes(ctx context.Context, arg UpdateCartItemNotesParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, updateCartItemNotes, arg.ID, arg.Notes))
}

// RemoveCartItemTree soft-removes a top-level item and its addon children
// in one statement.
const removeCartItemTree = `
UPDATE cart_items SET status = 'REMOVED'
WHERE (id = $1 OR parent_id = $1) AND status = 'ACTIVE'`

func (q *Queries) RemoveCartItemTree(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, removeCartItemTree, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const removeAllCartItems = `
UPDATE cart_items SET status = 'REMOVED'
WHERE cart_id = $1 AND status = 'ACTIVE'`

func (q *Queries) RemoveAllCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, removeAllCartItems, cartID)
	return err
}
