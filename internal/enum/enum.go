package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusUnpaid    = "UNPAID"
	OrderStatusPending   = "PENDING"
	OrderStatusAccepted  = "ACCEPTED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusShipping  = "SHIPPING"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusDenied    = "DENIED"
)

const (
	CartStatusActive    = "ACTIVE"
	CartStatusOrdered   = "ORDERED"
	CartStatusAbandoned = "ABANDONED"
)

const (
	CartItemStatusActive  = "ACTIVE"
	CartItemStatusOrdered = "ORDERED"
	CartItemStatusRemoved = "REMOVED"
)

const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

const (
	PaymentRecordStatusCreated   = "CREATED"
	PaymentRecordStatusCompleted = "COMPLETED"
	PaymentRecordStatusFailed    = "FAILED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	RoleCustomer   = "CUSTOMER"
	RoleRestaurant = "RESTAURANT"
	RoleCourier    = "COURIER"
	RoleAdmin      = "ADMIN"
)

const (
	PaymentMethodCash    = "CASH"
	PaymentMethodDigital = "DIGITAL"
	PaymentMethodFriend  = "FRIEND"
)

const (
	ItemTypeProduct = "PRODUCT"
	ItemTypeCombo   = "COMBO"
	ItemTypeAddon   = "ADDON"
)

const (
	OfferKindFixed      = "FIXED_AMOUNT"
	OfferKindPercentage = "PERCENTAGE"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	DeliveryStatusAwaitingPayment = "AWAITING_PAYMENT"
	DeliveryStatusAssigned        = "ASSIGNED"
)
