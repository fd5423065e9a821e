package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/enum"
	"github.com/sofra-app/api/internal/geo"
	"github.com/sofra-app/api/internal/notify"
	"github.com/sofra-app/api/internal/payment"
	"github.com/sofra-app/api/internal/pricing"
)

const routingSuffixLen = 9

// Errors returned by the order service.
var (
	ErrEmptyCart            = errors.New("cart has no items")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrNoDeliveryAddress    = errors.New("cart has no delivery address")
	ErrNoPromotionalOffer   = errors.New("products lack an active promotional offer")
	ErrNoPickupLocation     = errors.New("restaurant has no pickup location")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotOrderOwner        = errors.New("order belongs to another customer")
	ErrOrderNotPayable      = errors.New("order is not awaiting payment")
)

// OrderStore defines the DB methods needed to convert carts and read orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	pricing.Store
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetRestaurantAddress(ctx context.Context, restaurantID uuid.UUID) (database.RestaurantAddress, error)
	GetAddress(ctx context.Context, id uuid.UUID) (database.Address, error)
	GetActiveCartForUpdate(ctx context.Context, arg database.ActiveCartParams) (database.Cart, error)
	ListActiveCartItems(ctx context.Context, cartID uuid.UUID) ([]database.CartItem, error)
	MarkCartOrdered(ctx context.Context, id uuid.UUID) error
	MarkCartItemsOrdered(ctx context.Context, cartID uuid.UUID) error
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	SetOrderRoutingCode(ctx context.Context, arg database.SetOrderRoutingCodeParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderByRoutingCode(ctx context.Context, code string) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrdersByCustomer(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error)
	ListOrdersByRestaurant(ctx context.Context, arg database.ListOrdersByRestaurantParams) ([]database.Order, error)
	GetPaymentRecordByOrder(ctx context.Context, orderID uuid.UUID) (database.PaymentRecord, error)
	CreatePaymentRecord(ctx context.Context, arg database.CreatePaymentRecordParams) (database.PaymentRecord, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// ConvertCartRequest is the validated input for turning a cart into an order.
type ConvertCartRequest struct {
	Scope         CartScope
	PaymentMethod string
}

// ConvertCartResult is the created order with its snapshot lines. For
// digital payments, PaymentToken and IframeURL drive client checkout;
// they are empty when gateway registration failed (the client retries
// through the payment-key endpoint).
type ConvertCartResult struct {
	Order        database.Order
	Items        []database.OrderItem
	PaymentToken string
	IframeURL    string
}

// PaymentKeyResult is a checkout token for an unpaid order.
type PaymentKeyResult struct {
	PaymentToken string
	IframeURL    string
}

// OrderService handles cart-to-order conversion and order reads.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	settings SettingsProvider
	gateway  payment.Client
	notifier *Notifier
	currency string
	now      func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, settings SettingsProvider, gateway payment.Client, notifier *Notifier, currency string) *OrderService {
	return &OrderService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		settings: settings,
		gateway:  gateway,
		notifier: notifier,
		currency: currency,
		now:      time.Now,
	}
}

// orderLine is a prepared snapshot line awaiting insert.
type orderLine struct {
	params database.CreateOrderItemParams
	addons []database.CreateOrderItemParams
}

// ConvertCart atomically turns the scope's active cart into an order:
// prices are re-resolved, delivery is quoted from the distance between
// the restaurant and the cart's address, and the cart is retired so the
// scope frees up. Exactly one conversion can win a given cart.
func (s *OrderService) ConvertCart(ctx context.Context, req ConvertCartRequest) (*ConvertCartResult, error) {
	method, err := validatePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Validate restaurant ---
	restaurant, err := store.GetRestaurant(ctx, req.Scope.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	if !restaurant.Active {
		return nil, ErrRestaurantClosed
	}

	// --- Lock the cart ---
	cart, err := store.GetActiveCartForUpdate(ctx, database.ActiveCartParams(req.Scope))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get active cart: %w", err)
	}

	// --- Validate delivery address ---
	if !cart.AddressID.Valid {
		return nil, ErrNoDeliveryAddress
	}
	address, err := store.GetAddress(ctx, uuid.UUID(cart.AddressID.Bytes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoDeliveryAddress
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	if address.UserID != req.Scope.CustomerID {
		return nil, ErrNoDeliveryAddress
	}

	// --- Re-resolve prices and build snapshot lines ---
	items, err := store.ListActiveCartItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	lines, subtotal, discount, err := s.buildLines(ctx, store, cart, items)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// --- Quote delivery ---
	pickupLat, pickupLon, err := pickupLocation(ctx, store, restaurant)
	if err != nil {
		return nil, err
	}
	params := s.settings.Delivery(ctx)
	distance := geo.DistanceKm(pickupLat, pickupLon, address.Lat, address.Lon)
	deliveryFee := geo.DeliveryFee(decimal.NewFromFloat(distance), params.BaseKm, params.BasePrice, params.AfterBasePrice)
	shipping := deliveryFee.Add(params.SystemFees)
	total := subtotal.Add(shipping)

	// --- Initial state by payment method ---
	status := database.OrderStatusPENDING
	paymentStatus := database.PaymentStatusPAID
	deliveryStatus := pgtype.Text{}
	if method != database.PaymentMethodCASH {
		status = database.OrderStatusUNPAID
		paymentStatus = database.PaymentStatusPENDING
		deliveryStatus = pgtype.Text{String: enum.DeliveryStatusAwaitingPayment, Valid: true}
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerID:     req.Scope.CustomerID,
		RestaurantID:   req.Scope.RestaurantID,
		AddressID:      address.ID,
		PaymentMethod:  method,
		Subtotal:       decimalToNumeric(subtotal),
		ShippingAmount: decimalToNumeric(shipping),
		DiscountAmount: decimalToNumeric(discount),
		TotalAmount:    decimalToNumeric(total),
		Promotional:    cart.Promotional,
		Status:         status,
		DeliveryStatus: deliveryStatus,
		PaymentStatus:  paymentStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	suffix, err := randomCode(routingSuffixLen)
	if err != nil {
		return nil, fmt.Errorf("routing code: %w", err)
	}
	order, err = store.SetOrderRoutingCode(ctx, database.SetOrderRoutingCodeParams{
		ID:          order.ID,
		RoutingCode: fmt.Sprintf("%d-%s", order.OrderNumber, suffix),
	})
	if err != nil {
		return nil, fmt.Errorf("set routing code: %w", err)
	}

	// --- Insert snapshot lines ---
	var snapshot []database.OrderItem
	for _, line := range lines {
		line.params.OrderID = order.ID
		parent, err := store.CreateOrderItem(ctx, line.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		snapshot = append(snapshot, parent)
		for _, addon := range line.addons {
			addon.OrderID = order.ID
			addon.ParentID = uuidToPg(parent.ID)
			child, err := store.CreateOrderItem(ctx, addon)
			if err != nil {
				return nil, fmt.Errorf("create order addon item: %w", err)
			}
			snapshot = append(snapshot, child)
		}
	}

	// --- Retire the cart ---
	// A concurrent conversion already flipped the cart if this reports
	// no rows; the whole transaction rolls back.
	if err := store.MarkCartOrdered(ctx, cart.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("mark cart ordered: %w", err)
	}
	if err := store.MarkCartItemsOrdered(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("mark cart items ordered: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &ConvertCartResult{Order: order, Items: snapshot}

	// --- Post-commit side effects ---
	var outbox Outbox
	switch method {
	case database.PaymentMethodCASH:
		outbox.Add("notify restaurant", func(ctx context.Context) error {
			return s.notifier.NotifyRestaurant(ctx, order.RestaurantID, notify.Notification{
				Title: "New order",
				Body:  fmt.Sprintf("Order #%d is waiting for review", order.OrderNumber),
				Data:  map[string]string{"order_id": order.ID.String()},
			})
		})
		outbox.Add("broadcast order", func(ctx context.Context) error {
			s.notifier.BroadcastOrderEvent(order.RestaurantID, "order.created", orderEventPayload(order))
			return nil
		})
	case database.PaymentMethodDIGITAL:
		// Restaurant hears about the order only after the webhook
		// confirms payment.
		outbox.Add("register payment", func(ctx context.Context) error {
			key, err := s.registerPayment(ctx, order, total)
			if err != nil {
				return err
			}
			result.PaymentToken = key
			result.IframeURL = s.gateway.IframeURL(key)
			return nil
		})
	case database.PaymentMethodFRIEND:
		// The paying friend requests a key through the payment-key
		// endpoint using the shared routing code.
	}
	outbox.Run(ctx)

	return result, nil
}

// buildLines re-resolves prices for every active top-level cart line and
// prepares the immutable order snapshot.
func (s *OrderService) buildLines(ctx context.Context, store OrderStore, cart database.Cart, items []database.CartItem) ([]orderLine, decimal.Decimal, decimal.Decimal, error) {
	resolver := pricing.NewResolver(store)
	now := s.now()

	subtotal := decimal.Zero
	discount := decimal.Zero
	var lines []orderLine
	var missingPromo []string

	for _, item := range items {
		if item.ParentID.Valid {
			continue
		}
		qty := decimal.NewFromInt32(item.Quantity)

		var name string
		var unitPrice, basePrice decimal.Decimal
		offerID := pgtype.UUID{}

		switch item.ItemType {
		case database.ItemTypePRODUCT:
			productID := uuid.UUID(item.ProductID.Bytes)
			product, err := store.GetProduct(ctx, productID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: product %s", ErrItemUnavailable, productID)
				}
				return nil, decimal.Zero, decimal.Zero, fmt.Errorf("get product: %w", err)
			}
			name = product.Name
			basePrice = numericToDecimal(product.SalePrice)

			offer, hasOffer, err := resolver.ProductOffer(ctx, productID, cart.Promotional, now)
			if err != nil {
				return nil, decimal.Zero, decimal.Zero, err
			}
			if cart.Promotional && !hasOffer {
				missingPromo = append(missingPromo, product.Name)
				continue
			}
			if hasOffer {
				offerID = uuidToPg(offer.ID)
			}
			unitPrice, err = resolver.ProductPrice(ctx, productID, cart.Promotional, now)
			if err != nil {
				return nil, decimal.Zero, decimal.Zero, err
			}
		case database.ItemTypeCOMBO:
			comboID := uuid.UUID(item.ComboID.Bytes)
			combo, err := store.GetCombo(ctx, comboID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: combo %s", ErrItemUnavailable, comboID)
				}
				return nil, decimal.Zero, decimal.Zero, fmt.Errorf("get combo: %w", err)
			}
			name = combo.Name
			basePrice = numericToDecimal(combo.Price)
			unitPrice, err = resolver.ComboPrice(ctx, comboID)
			if err != nil {
				return nil, decimal.Zero, decimal.Zero, err
			}
		default:
			continue
		}

		if unitPrice.IsZero() {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrItemUnavailable, name)
		}

		lineTotal := unitPrice.Mul(qty)
		subtotal = subtotal.Add(lineTotal)
		if basePrice.GreaterThan(unitPrice) {
			discount = discount.Add(basePrice.Sub(unitPrice).Mul(qty))
		}

		line := orderLine{params: database.CreateOrderItemParams{
			ItemType:   item.ItemType,
			ProductID:  item.ProductID,
			ComboID:    item.ComboID,
			OfferID:    offerID,
			Name:       name,
			Quantity:   item.Quantity,
			UnitPrice:  decimalToNumeric(unitPrice),
			TotalPrice: decimalToNumeric(lineTotal),
			Notes:      item.Notes,
		}}

		// Addon children re-resolve too, at the parent quantity.
		for _, child := range items {
			if !child.ParentID.Valid || child.ParentID.Bytes != item.ID || !child.AddonID.Valid {
				continue
			}
			addonID := uuid.UUID(child.AddonID.Bytes)
			addon, err := store.GetAddon(ctx, addonID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: addon %s", ErrAddonUnavailable, addonID)
				}
				return nil, decimal.Zero, decimal.Zero, fmt.Errorf("get addon: %w", err)
			}
			addonPrice, err := resolver.AddonPrice(ctx, addonID)
			if err != nil {
				return nil, decimal.Zero, decimal.Zero, err
			}
			if addonPrice.IsZero() {
				return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrAddonUnavailable, addon.Name)
			}
			addonTotal := addonPrice.Mul(qty)
			subtotal = subtotal.Add(addonTotal)
			line.addons = append(line.addons, database.CreateOrderItemParams{
				ItemType:   database.ItemTypeADDON,
				AddonID:    child.AddonID,
				Name:       addon.Name,
				Quantity:   item.Quantity,
				UnitPrice:  decimalToNumeric(addonPrice),
				TotalPrice: decimalToNumeric(addonTotal),
			})
		}

		lines = append(lines, line)
	}

	if len(missingPromo) > 0 {
		return nil, decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrNoPromotionalOffer, strings.Join(missingPromo, ", "))
	}
	return lines, subtotal, discount, nil
}

// pickupLocation prefers the restaurant's dedicated pickup address over
// its own lat/lon fields.
func pickupLocation(ctx context.Context, store OrderStore, restaurant database.Restaurant) (float64, float64, error) {
	pickup, err := store.GetRestaurantAddress(ctx, restaurant.ID)
	if err == nil {
		return pickup.Lat, pickup.Lon, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("get restaurant address: %w", err)
	}
	if restaurant.Lat.Valid && restaurant.Lon.Valid {
		return restaurant.Lat.Float64, restaurant.Lon.Float64, nil
	}
	return 0, 0, ErrNoPickupLocation
}

// registerPayment registers the order with the gateway, mints a checkout
// token, and records the attempt.
func (s *OrderService) registerPayment(ctx context.Context, order database.Order, total decimal.Decimal) (string, error) {
	amountCents := payment.Cents(total)

	gatewayOrderID, err := s.gateway.RegisterOrder(ctx, payment.RegisterOrderRequest{
		MerchantOrderID: order.ID.String(),
		AmountCents:     amountCents,
		Currency:        s.currency,
	})
	if err != nil {
		return "", fmt.Errorf("register gateway order: %w", err)
	}

	customer, err := s.store.GetUserByID(ctx, order.CustomerID)
	if err != nil {
		return "", fmt.Errorf("get customer: %w", err)
	}

	key, err := s.gateway.GeneratePaymentKey(ctx, payment.PaymentKeyRequest{
		GatewayOrderID: gatewayOrderID,
		AmountCents:    amountCents,
		Currency:       s.currency,
		BillingEmail:   customer.Email,
		BillingName:    customer.FullName,
	})
	if err != nil {
		return "", fmt.Errorf("generate payment key: %w", err)
	}

	if _, err := s.store.CreatePaymentRecord(ctx, database.CreatePaymentRecordParams{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrderID,
		PaymentToken:   key,
		AmountCents:    amountCents,
	}); err != nil {
		return "", fmt.Errorf("create payment record: %w", err)
	}
	return key, nil
}

// PaymentKey returns a checkout token for an unpaid order, reusing the
// recorded one when registration already succeeded. This is the retry
// path for failed post-conversion registration and the entry point for
// FRIEND payments.
func (s *OrderService) PaymentKey(ctx context.Context, actorID uuid.UUID, orderID uuid.UUID) (*PaymentKeyResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	// FRIEND orders are payable by anyone holding the routing code, so
	// ownership is enforced only for the customer's own digital orders.
	if order.PaymentMethod == database.PaymentMethodDIGITAL && order.CustomerID != actorID {
		return nil, ErrNotOrderOwner
	}
	if order.Status != database.OrderStatusUNPAID {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotPayable, order.Status)
	}

	record, err := s.store.GetPaymentRecordByOrder(ctx, orderID)
	if err == nil && record.PaymentToken.Valid && record.Status == database.PaymentRecordStatusCREATED {
		return &PaymentKeyResult{
			PaymentToken: record.PaymentToken.String,
			IframeURL:    s.gateway.IframeURL(record.PaymentToken.String),
		}, nil
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get payment record: %w", err)
	}

	total := numericToDecimal(order.TotalAmount)
	key, err := s.registerPayment(ctx, order, total)
	if err != nil {
		return nil, err
	}
	return &PaymentKeyResult{PaymentToken: key, IframeURL: s.gateway.IframeURL(key)}, nil
}

// GetOrder returns an order with its snapshot lines.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (database.Order, []database.OrderItem, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, nil, ErrOrderNotFound
		}
		return database.Order{}, nil, fmt.Errorf("get order: %w", err)
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("list order items: %w", err)
	}
	return order, items, nil
}

// GetOrderByRoutingCode resolves the shareable code printed on receipts
// and FRIEND payment links.
func (s *OrderService) GetOrderByRoutingCode(ctx context.Context, code string) (database.Order, []database.OrderItem, error) {
	order, err := s.store.GetOrderByRoutingCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, nil, ErrOrderNotFound
		}
		return database.Order{}, nil, fmt.Errorf("get order by routing code: %w", err)
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("list order items: %w", err)
	}
	return order, items, nil
}

// --- Helpers ---

func validatePaymentMethod(s string) (database.PaymentMethod, error) {
	switch database.PaymentMethod(s) {
	case database.PaymentMethodCASH, database.PaymentMethodDIGITAL, database.PaymentMethodFRIEND:
		return database.PaymentMethod(s), nil
	}
	return "", ErrInvalidPaymentMethod
}

// orderEventPayload is the dashboard-facing shape of an order event.
func orderEventPayload(order database.Order) map[string]any {
	return map[string]any{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"status":         order.Status,
		"payment_method": order.PaymentMethod,
		"total_amount":   numericToDecimal(order.TotalAmount),
	}
}
