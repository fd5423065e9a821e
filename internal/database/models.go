package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusUNPAID    OrderStatus = "UNPAID"
	OrderStatusPENDING   OrderStatus = "PENDING"
	OrderStatusACCEPTED  OrderStatus = "ACCEPTED"
	OrderStatusCOMPLETED OrderStatus = "COMPLETED"
	OrderStatusSHIPPING  OrderStatus = "SHIPPING"
	OrderStatusSHIPPED   OrderStatus = "SHIPPED"
	OrderStatusCANCELLED OrderStatus = "CANCELLED"
	OrderStatusDENIED    OrderStatus = "DENIED"
)

type CartStatus string

const (
	CartStatusACTIVE    CartStatus = "ACTIVE"
	CartStatusORDERED   CartStatus = "ORDERED"
	CartStatusABANDONED CartStatus = "ABANDONED"
)

type CartItemStatus string

const (
	CartItemStatusACTIVE  CartItemStatus = "ACTIVE"
	CartItemStatusORDERED CartItemStatus = "ORDERED"
	CartItemStatusREMOVED CartItemStatus = "REMOVED"
)

type PaymentMethod string

const (
	PaymentMethodCASH    PaymentMethod = "CASH"
	PaymentMethodDIGITAL PaymentMethod = "DIGITAL"
	PaymentMethodFRIEND  PaymentMethod = "FRIEND"
)

type PaymentStatus string

const (
	PaymentStatusPENDING PaymentStatus = "PENDING"
	PaymentStatusPAID    PaymentStatus = "PAID"
	PaymentStatusFAILED  PaymentStatus = "FAILED"
)

type PaymentRecordStatus string

const (
	PaymentRecordStatusCREATED   PaymentRecordStatus = "CREATED"
	PaymentRecordStatusCOMPLETED PaymentRecordStatus = "COMPLETED"
	PaymentRecordStatusFAILED    PaymentRecordStatus = "FAILED"
)

type ItemType string

const (
	ItemTypePRODUCT ItemType = "PRODUCT"
	ItemTypeCOMBO   ItemType = "COMBO"
	ItemTypeADDON   ItemType = "ADDON"
)

type OfferKind string

const (
	OfferKindFIXEDAMOUNT OfferKind = "FIXED_AMOUNT"
	OfferKindPERCENTAGE  OfferKind = "PERCENTAGE"
)

type Restaurant struct {
	ID            uuid.UUID
	Name          string
	City          string
	Lat           pgtype.Float8
	Lon           pgtype.Float8
	Active        bool
	WalletBalance pgtype.Numeric
	FcmToken      pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RestaurantAddress is the dedicated pickup-location record, preferred
// over the restaurant's own lat/lon fields when both exist.
type RestaurantAddress struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Lat          float64
	Lon          float64
	Details      pgtype.Text
}

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	RestaurantID   pgtype.UUID
	City           pgtype.Text
	Verified       bool
	Active         bool
	FcmToken       pgtype.Text
	DeletedAt      pgtype.Timestamptz
	CreatedAt      time.Time
}

type Address struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Label     pgtype.Text
	City      string
	Lat       float64
	Lon       float64
	Details   pgtype.Text
	CreatedAt time.Time
}

type Product struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	SalePrice    pgtype.Numeric
	Active       bool
	CreatedAt    time.Time
}

type Combo struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Price        pgtype.Numeric
	Active       bool
	CreatedAt    time.Time
}

type Addon struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	SalePrice    pgtype.Numeric
	Active       bool
	CreatedAt    time.Time
}

type Offer struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	Kind        OfferKind
	Amount      pgtype.Numeric
	Percentage  pgtype.Numeric
	PromoPrice  pgtype.Numeric
	StartsAt    pgtype.Timestamptz
	EndsAt      pgtype.Timestamptz
	Promotional bool
	Active      bool
	CreatedAt   time.Time
}

type Cart struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Promotional  bool
	Status       CartStatus
	TotalAmount  pgtype.Numeric
	TotalItems   int32
	AddressID    pgtype.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CartItem struct {
	ID         uuid.UUID
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
	Status     CartItemStatus
	CreatedAt  time.Time
}

type Order struct {
	ID             uuid.UUID
	OrderNumber    int64
	CustomerID     uuid.UUID
	RestaurantID   uuid.UUID
	AddressID      uuid.UUID
	PaymentMethod  PaymentMethod
	Subtotal       pgtype.Numeric
	ShippingAmount pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	RoutingCode    pgtype.Text
	Promotional    bool
	Status         OrderStatus
	DeliveryStatus pgtype.Text
	DeliveryManID  pgtype.UUID
	PaymentStatus  PaymentStatus
	StatusReason   pgtype.Text
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      pgtype.Timestamptz
}

// OrderItem is an immutable snapshot of a cart item at conversion time.
// Name is copied so historical orders survive catalog renames.
type OrderItem struct {
	ID         uuid.UUID
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
	CreatedAt  time.Time
}

type PaymentRecord struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	GatewayOrderID string
	PaymentToken   pgtype.Text
	AmountCents    int64
	Status         PaymentRecordStatus
	PaymentStatus  PaymentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type PaymentTransaction struct {
	ID              uuid.UUID
	PaymentRecordID uuid.UUID
	GatewayTxnID    string
	Success         bool
	AmountCents     int64
	Payload         []byte
	CreatedAt       time.Time
}
