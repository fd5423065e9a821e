package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/notify"
)

// Errors returned by the status service.
var (
	ErrForbidden       = errors.New("actor may not act on this order")
	ErrStatusConflict  = errors.New("order status conflict")
	ErrReasonRequired  = errors.New("a reason is required")
	ErrAlreadyAssigned = errors.New("order already has a courier")
	ErrNotCashOrder    = errors.New("only cash orders can be cancelled this way")
)

// allowedTransitions is the full lifecycle. UNPAID moves to PENDING only
// through payment reconciliation, never through this service.
var allowedTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusUNPAID:    {database.OrderStatusCANCELLED},
	database.OrderStatusPENDING:   {database.OrderStatusACCEPTED, database.OrderStatusDENIED, database.OrderStatusCANCELLED},
	database.OrderStatusACCEPTED:  {database.OrderStatusCOMPLETED, database.OrderStatusCANCELLED},
	database.OrderStatusCOMPLETED: {database.OrderStatusSHIPPING},
	database.OrderStatusSHIPPING:  {database.OrderStatusSHIPPED},
}

func canTransition(from, to database.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusStore defines the DB methods needed to drive order state.
// Satisfied by *database.Queries (and its WithTx variant).
type StatusStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	AssignOrderCourier(ctx context.Context, arg database.AssignOrderCourierParams) (database.Order, error)
	CreditRestaurantWallet(ctx context.Context, arg database.CreditRestaurantWalletParams) error
	GetAddress(ctx context.Context, id uuid.UUID) (database.Address, error)
	ListOrdersByCourier(ctx context.Context, arg database.ListOrdersByCourierParams) ([]database.Order, error)
	ListAvailableDeliveries(ctx context.Context, arg database.ListAvailableDeliveriesParams) ([]database.Order, error)
}

// NewStatusStore creates a StatusStore from a DBTX (pool or tx).
type NewStatusStore func(db database.DBTX) StatusStore

// StatusService drives the order lifecycle across its three parties:
// the restaurant reviews, the courier delivers, the customer can back
// out early. Every write is an optimistic compare-and-set on status.
type StatusService struct {
	pool     TxBeginner
	store    StatusStore
	newStore NewStatusStore
	settings SettingsProvider
	notifier *Notifier
}

// NewStatusService creates a new StatusService.
func NewStatusService(pool TxBeginner, store StatusStore, newStore NewStatusStore, settings SettingsProvider, notifier *Notifier) *StatusService {
	return &StatusService{pool: pool, store: store, newStore: newStore, settings: settings, notifier: notifier}
}

// Accept moves a reviewed order from PENDING to ACCEPTED.
func (s *StatusService) Accept(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.transition(ctx, orderID, database.OrderStatusPENDING, database.OrderStatusACCEPTED, "",
		func(o database.Order) error { return requireRestaurant(o, restaurantID) })
	if err != nil {
		return database.Order{}, err
	}

	var outbox Outbox
	outbox.Add("notify customer", func(ctx context.Context) error {
		return s.notifier.NotifyCustomer(ctx, order.CustomerID, notify.Notification{
			Title: "Order accepted",
			Body:  fmt.Sprintf("Order #%d is being prepared", order.OrderNumber),
			Data:  map[string]string{"order_id": order.ID.String()},
		})
	})
	outbox.Add("broadcast order", func(ctx context.Context) error {
		s.notifier.BroadcastOrderEvent(order.RestaurantID, "order.accepted", orderEventPayload(order))
		return nil
	})
	outbox.Run(ctx)
	return order, nil
}

// Deny refuses a PENDING order with a mandatory reason.
func (s *StatusService) Deny(ctx context.Context, restaurantID, orderID uuid.UUID, reason string) (database.Order, error) {
	if reason == "" {
		return database.Order{}, ErrReasonRequired
	}
	order, err := s.transition(ctx, orderID, database.OrderStatusPENDING, database.OrderStatusDENIED, reason,
		func(o database.Order) error { return requireRestaurant(o, restaurantID) })
	if err != nil {
		return database.Order{}, err
	}

	var outbox Outbox
	outbox.Add("notify customer", func(ctx context.Context) error {
		return s.notifier.NotifyCustomer(ctx, order.CustomerID, notify.Notification{
			Title: "Order denied",
			Body:  fmt.Sprintf("Order #%d was denied: %s", order.OrderNumber, reason),
			Data:  map[string]string{"order_id": order.ID.String()},
		})
	})
	outbox.Run(ctx)
	return order, nil
}

// CancelByCustomer lets the customer back out while the order is still
// UNPAID or PENDING. Once the restaurant accepts, cancellation moves to
// support staff.
func (s *StatusService) CancelByCustomer(ctx context.Context, customerID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.CustomerID != customerID {
		return database.Order{}, ErrForbidden
	}
	if order.Status != database.OrderStatusUNPAID && order.Status != database.OrderStatusPENDING {
		return database.Order{}, conflict(order.Status)
	}

	order, err = s.transition(ctx, orderID, order.Status, database.OrderStatusCANCELLED, "cancelled by customer", nil)
	if err != nil {
		return database.Order{}, err
	}

	var outbox Outbox
	outbox.Add("broadcast order", func(ctx context.Context) error {
		s.notifier.BroadcastOrderEvent(order.RestaurantID, "order.cancelled", orderEventPayload(order))
		return nil
	})
	outbox.Run(ctx)
	return order, nil
}

// Complete marks the food ready and opens the order to couriers in the
// delivery city.
func (s *StatusService) Complete(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.transition(ctx, orderID, database.OrderStatusACCEPTED, database.OrderStatusCOMPLETED, "",
		func(o database.Order) error { return requireRestaurant(o, restaurantID) })
	if err != nil {
		return database.Order{}, err
	}

	var outbox Outbox
	outbox.Add("courier fanout", func(ctx context.Context) error {
		address, err := s.store.GetAddress(ctx, order.AddressID)
		if err != nil {
			return fmt.Errorf("get address: %w", err)
		}
		return s.notifier.FanoutDelivery(ctx, address.City, notify.Notification{
			Title: "Delivery available",
			Body:  fmt.Sprintf("Order #%d is ready for pickup", order.OrderNumber),
			Data:  map[string]string{"order_id": order.ID.String()},
		})
	})
	outbox.Add("notify customer", func(ctx context.Context) error {
		return s.notifier.NotifyCustomer(ctx, order.CustomerID, notify.Notification{
			Title: "Order ready",
			Body:  fmt.Sprintf("Order #%d is ready and waiting for a courier", order.OrderNumber),
			Data:  map[string]string{"order_id": order.ID.String()},
		})
	})
	outbox.Run(ctx)
	return order, nil
}

// AssignCourier claims a completed, unassigned order for a courier. The
// single-statement guard makes concurrent claims race-safe: exactly one
// courier wins.
func (s *StatusService) AssignCourier(ctx context.Context, courierID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.AssignOrderCourier(ctx, database.AssignOrderCourierParams{
		ID:            orderID,
		DeliveryManID: courierID,
	})
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, fmt.Errorf("assign courier: %w", err)
	}

	// Disambiguate the miss for a useful client error.
	current, getErr := s.store.GetOrder(ctx, orderID)
	if getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", getErr)
	}
	if current.DeliveryManID.Valid {
		return database.Order{}, ErrAlreadyAssigned
	}
	return database.Order{}, conflict(current.Status)
}

// MarkShipping records the courier's pickup.
func (s *StatusService) MarkShipping(ctx context.Context, courierID, orderID uuid.UUID) (database.Order, error) {
	return s.transition(ctx, orderID, database.OrderStatusCOMPLETED, database.OrderStatusSHIPPING, "",
		func(o database.Order) error { return requireCourier(o, courierID) })
}

// MarkShipped records the handover and credits the restaurant's wallet
// with the platform fee in the same transaction, so a crash cannot
// separate the two.
func (s *StatusService) MarkShipped(ctx context.Context, courierID, orderID uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if err := requireCourier(order, courierID); err != nil {
		return database.Order{}, err
	}
	if order.Status != database.OrderStatusSHIPPING {
		return database.Order{}, conflict(order.Status)
	}

	order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     database.OrderStatusSHIPPED,
		FromStatus: database.OrderStatusSHIPPING,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, conflict(order.Status)
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	// Every order's shipping carries the configured system fees; on
	// delivery that amount lands in the restaurant's wallet.
	if err := store.CreditRestaurantWallet(ctx, database.CreditRestaurantWalletParams{
		ID:     order.RestaurantID,
		Amount: decimalToNumeric(s.settings.SystemFees(ctx)),
	}); err != nil {
		return database.Order{}, fmt.Errorf("credit restaurant wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	var outbox Outbox
	outbox.Add("notify customer", func(ctx context.Context) error {
		return s.notifier.NotifyCustomer(ctx, order.CustomerID, notify.Notification{
			Title: "Order delivered",
			Body:  fmt.Sprintf("Order #%d has been delivered", order.OrderNumber),
			Data:  map[string]string{"order_id": order.ID.String()},
		})
	})
	outbox.Run(ctx)
	return order, nil
}

// AdminCancel is the support escape hatch: cash orders only, before the
// food is ready, always with a reason. Digital money must flow back
// through the gateway, which this system does not do.
func (s *StatusService) AdminCancel(ctx context.Context, orderID uuid.UUID, reason string) (database.Order, error) {
	if reason == "" {
		return database.Order{}, ErrReasonRequired
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.PaymentMethod != database.PaymentMethodCASH {
		return database.Order{}, ErrNotCashOrder
	}
	if order.Status != database.OrderStatusPENDING && order.Status != database.OrderStatusACCEPTED {
		return database.Order{}, conflict(order.Status)
	}

	order, err = s.transition(ctx, orderID, order.Status, database.OrderStatusCANCELLED, reason, nil)
	if err != nil {
		return database.Order{}, err
	}

	var outbox Outbox
	outbox.Add("notify customer", func(ctx context.Context) error {
		return s.notifier.NotifyCustomer(ctx, order.CustomerID, notify.Notification{
			Title: "Order cancelled",
			Body:  fmt.Sprintf("Order #%d was cancelled: %s", order.OrderNumber, reason),
			Data:  map[string]string{"order_id": order.ID.String()},
		})
	})
	outbox.Add("broadcast order", func(ctx context.Context) error {
		s.notifier.BroadcastOrderEvent(order.RestaurantID, "order.cancelled", orderEventPayload(order))
		return nil
	})
	outbox.Run(ctx)
	return order, nil
}

// AvailableDeliveries lists claimable orders in the courier's city.
func (s *StatusService) AvailableDeliveries(ctx context.Context, city string, limit, offset int32) ([]database.Order, error) {
	return s.store.ListAvailableDeliveries(ctx, database.ListAvailableDeliveriesParams{
		City:   city,
		Limit:  limit,
		Offset: offset,
	})
}

// CourierOrders lists a courier's claimed orders.
func (s *StatusService) CourierOrders(ctx context.Context, courierID uuid.UUID, limit, offset int32) ([]database.Order, error) {
	return s.store.ListOrdersByCourier(ctx, database.ListOrdersByCourierParams{
		DeliveryManID: courierID,
		Limit:         limit,
		Offset:        offset,
	})
}

// --- Internals ---

// transition performs a guarded compare-and-set from one status to the
// next. check runs against the pre-image for actor authorization.
func (s *StatusService) transition(ctx context.Context, orderID uuid.UUID, from, to database.OrderStatus, reason string, check func(database.Order) error) (database.Order, error) {
	if !canTransition(from, to) {
		return database.Order{}, conflict(from)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if check != nil {
		if err := check(order); err != nil {
			return database.Order{}, err
		}
	}
	if order.Status != from {
		return database.Order{}, conflict(order.Status)
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:           orderID,
		Status:       to,
		FromStatus:   from,
		StatusReason: textOrNull(reason),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race; re-read for an accurate conflict message.
			current, getErr := s.store.GetOrder(ctx, orderID)
			if getErr == nil {
				return database.Order{}, conflict(current.Status)
			}
			return database.Order{}, conflict(from)
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

func conflict(current database.OrderStatus) error {
	return fmt.Errorf("%w: order is %s", ErrStatusConflict, current)
}

func requireRestaurant(order database.Order, restaurantID uuid.UUID) error {
	if order.RestaurantID != restaurantID {
		return ErrForbidden
	}
	return nil
}

func requireCourier(order database.Order, courierID uuid.UUID) error {
	if !order.DeliveryManID.Valid || uuid.UUID(order.DeliveryManID.Bytes) != courierID {
		return ErrForbidden
	}
	return nil
}
