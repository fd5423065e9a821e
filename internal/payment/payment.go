// Package payment integrates with the card payment gateway. Digital
// orders are registered with the gateway at conversion time; the
// returned payment key drives the client-side iframe checkout, and the
// gateway reports the outcome through the webhook.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrGatewayRejected is returned when the gateway refuses a request
// with a non-transport error (bad merchant config, rejected amount).
var ErrGatewayRejected = errors.New("payment gateway rejected request")

// RegisterOrderRequest registers an amount with the gateway ahead of
// checkout. MerchantOrderID must be unique per attempt.
type RegisterOrderRequest struct {
	MerchantOrderID string
	AmountCents     int64
	Currency        string
}

// PaymentKeyRequest obtains a single-use checkout token for a
// previously registered gateway order.
type PaymentKeyRequest struct {
	GatewayOrderID string
	AmountCents    int64
	Currency       string
	BillingEmail   string
	BillingName    string
	BillingCity    string
}

// Verification is the gateway's authoritative view of one transaction,
// used when re-checking a webhook out of band.
type Verification struct {
	TransactionID  string
	GatewayOrderID string
	Success        bool
	AmountCents    int64
}

// Client is the gateway surface the services depend on.
// Satisfied by *HTTPClient; mocked in tests.
type Client interface {
	RegisterOrder(ctx context.Context, req RegisterOrderRequest) (string, error)
	GeneratePaymentKey(ctx context.Context, req PaymentKeyRequest) (string, error)
	VerifyTransaction(ctx context.Context, transactionID string) (Verification, error)
	IframeURL(paymentToken string) string
}

// Cents converts a decimal money amount to the gateway's integer cents.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
