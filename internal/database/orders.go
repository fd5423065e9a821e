package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_id, restaurant_id, address_id, payment_method, subtotal, shipping_amount, discount_amount, total_amount, routing_code, promotional, status, delivery_status, delivery_man_id, payment_status, status_reason, created_at, updated_at, deleted_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.RestaurantID,
		&o.AddressID,
		&o.PaymentMethod,
		&o.Subtotal,
		&o.ShippingAmount,
		&o.DiscountAmount,
		&o.TotalAmount,
		&o.RoutingCode,
		&o.Promotional,
		&o.Status,
		&o.DeliveryStatus,
		&o.DeliveryManID,
		&o.PaymentStatus,
		&o.StatusReason,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.DeletedAt,
	)
	return o, err
}

type CreateOrderParams struct {
	CustomerID     uuid.UUID
	RestaurantID   uuid.UUID
	AddressID      uuid.UUID
	PaymentMethod  PaymentMethod
	Subtotal       pgtype.Numeric
	ShippingAmount pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Promotional    bool
	Status         OrderStatus
	DeliveryStatus pgtype.Text
	PaymentStatus  PaymentStatus
}

const createOrder = `
INSERT INTO orders (customer_id, restaurant_id, address_id, payment_method, subtotal, shipping_amount, discount_amount, total_amount, promotional, status, delivery_status, payment_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.CustomerID,
		arg.RestaurantID,
		arg.AddressID,
		arg.PaymentMethod,
		arg.Subtotal,
		arg.ShippingAmount,
		arg.DiscountAmount,
		arg.TotalAmount,
		arg.Promotional,
		arg.Status,
		arg.DeliveryStatus,
		arg.PaymentStatus,
	))
}

type SetOrderRoutingCodeParams struct {
	ID          uuid.UUID
	RoutingCode string
}

const setOrderRoutingCode = `
UPDATE orders SET routing_code = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) SetOrderRoutingCode(ctx context.Context, arg SetOrderRoutingCodeParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderRoutingCode, arg.ID, arg.RoutingCode))
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND deleted_at IS NULL`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = getOrder + `
FOR NO KEY UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getOrderByRoutingCode = `
SELECT ` + orderColumns + `
FROM orders
WHERE routing_code = $1 AND deleted_at IS NULL`

func (q *Queries) GetOrderByRoutingCode(ctx context.Context, code string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByRoutingCode, code))
}

type ListOrdersByCustomerParams struct {
	CustomerID uuid.UUID
	Limit      int32
	Offset     int32
}

const listOrdersByCustomer = `
SELECT ` + orderColumns + `
FROM orders
WHERE customer_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListOrdersByCustomer(ctx context.Context, arg ListOrdersByCustomerParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomer, arg.CustomerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

type ListOrdersByRestaurantParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
	Limit        int32
	Offset       int32
}

const listOrdersByRestaurant = `
SELECT ` + orderColumns + `
FROM orders
WHERE restaurant_id = $1
  AND deleted_at IS NULL
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

func (q *Queries) ListOrdersByRestaurant(ctx context.Context, arg ListOrdersByRestaurantParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByRestaurant, arg.RestaurantID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

type ListOrdersByCourierParams struct {
	DeliveryManID uuid.UUID
	Limit         int32
	Offset        int32
}

const listOrdersByCourier = `
SELECT ` + orderColumns + `
FROM orders
WHERE delivery_man_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListOrdersByCourier(ctx context.Context, arg ListOrdersByCourierParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCourier, arg.DeliveryManID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

type ListAvailableDeliveriesParams struct {
	City   string
	Limit  int32
	Offset int32
}

// ListAvailableDeliveries returns completed, unassigned orders whose
// delivery address is in the courier's city.
const listAvailableDeliveries = `
SELECT ` + orderColumns + `
FROM orders o
WHERE o.status = 'COMPLETED'
  AND o.delivery_man_id IS NULL
  AND o.deleted_at IS NULL
  AND EXISTS (
    SELECT 1 FROM addresses a WHERE a.id = o.address_id AND a.city = $1
  )
ORDER BY o.created_at
LIMIT $2 OFFSET $3`

func (q *Queries) ListAvailableDeliveries(ctx context.Context, arg ListAvailableDeliveriesParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listAvailableDeliveries, arg.City, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID           uuid.UUID
	Status       OrderStatus
	FromStatus   OrderStatus
	StatusReason pgtype.Text
}

// UpdateOrderStatus is optimistic: no rows means the order moved out of
// FromStatus between read and write, and the caller reports a conflict.
const updateOrderStatus = `
UPDATE orders
SET status = $2, status_reason = COALESCE($4, status_reason), updated_at = NOW()
WHERE id = $1 AND status = $3 AND deleted_at IS NULL
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.FromStatus, arg.StatusReason))
}

// SetOrderPaid advances an UNPAID order after payment confirmation. The
// status guard makes re-application a no-op for already-advanced orders.
const setOrderPaid = `
UPDATE orders
SET status = 'PENDING',
    payment_status = 'PAID',
    payment_method = 'DIGITAL',
    delivery_status = NULL,
    updated_at = NOW()
WHERE id = $1 AND status = 'UNPAID'
RETURNING ` + orderColumns

func (q *Queries) SetOrderPaid(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderPaid, id))
}

type AssignOrderCourierParams struct {
	ID            uuid.UUID
	DeliveryManID uuid.UUID
}

const assignOrderCourier = `
UPDATE orders
SET delivery_man_id = $2, delivery_status = 'ASSIGNED', updated_at = NOW()
WHERE id = $1 AND status = 'COMPLETED' AND delivery_man_id IS NULL AND deleted_at IS NULL
RETURNING ` + orderColumns

func (q *Queries) AssignOrderCourier(ctx context.Context, arg AssignOrderCourierParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, assignOrderCourier, arg.ID, arg.DeliveryManID))
}

const orderItemColumns = `id, order_id, parent_id, item_type, product_id, combo_id, addon_id, offer_id, name, quantity, unit_price, total_price, notes, created_at`

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ParentID,
		&i.ItemType,
		&i.ProductID,
		&i.ComboID,
		&i.AddonID,
		&i.OfferID,
		&i.Name,
		&i.Quantity,
		&i.UnitPrice,
		&i.TotalPrice,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	ParentID   pgtype.UUID
	ItemType   ItemType
	ProductID  pgtype.UUID
	ComboID    pgtype.UUID
	AddonID    pgtype.UUID
	OfferID    pgtype.UUID
	Name       string
	Quantity   int32
	UnitPrice  pgtype.Numeric
	TotalPrice pgtype.Numeric
	Notes      pgtype.Text
}

const createOrderItem = `
INSERT INTO order_items (order_id, parent_id, item_type, product_id, combo_id, addon_id, offer_id, name, quantity, unit_price, total_price, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + orderItemColumns

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ParentID,
		arg.ItemType,
		arg.ProductID,
		arg.ComboID,
		arg.AddonID,
		arg.OfferID,
		arg.Name,
		arg.Quantity,
		arg.UnitPrice,
		arg.TotalPrice,
		arg.Notes,
	))
}

const listOrderItemsByOrder = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
