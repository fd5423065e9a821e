package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentRecordColumns = `id, order_id, gateway_order_id, payment_token, amount_cents, status, payment_status, created_at, updated_at`

func scanPaymentRecord(row pgx.Row) (PaymentRecord, error) {
	var p PaymentRecord
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.GatewayOrderID,
		&p.PaymentToken,
		&p.AmountCents,
		&p.Status,
		&p.PaymentStatus,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

type CreatePaymentRecordParams struct {
	OrderID        uuid.UUID
	GatewayOrderID string
	PaymentToken   string
	AmountCents    int64
}

const createPaymentRecord = `
INSERT INTO payment_records (order_id, gateway_order_id, payment_token, amount_cents, status, payment_status)
VALUES ($1, $2, $3, $4, 'CREATED', 'PENDING')
RETURNING ` + paymentRecordColumns

func (q *Queries) CreatePaymentRecord(ctx context.Context, arg CreatePaymentRecordParams) (PaymentRecord, error) {
	return scanPaymentRecord(q.db.QueryRow(ctx, createPaymentRecord,
		arg.OrderID, arg.GatewayOrderID, arg.PaymentToken, arg.AmountCents))
}

const getPaymentRecordByGatewayOrderID = `
SELECT ` + paymentRecordColumns + `
FROM payment_records
WHERE gateway_order_id = $1`

func (q *Queries) GetPaymentRecordByGatewayOrderID(ctx context.Context, gatewayOrderID string) (PaymentRecord, error) {
	return scanPaymentRecord(q.db.QueryRow(ctx, getPaymentRecordByGatewayOrderID, gatewayOrderID))
}

const getPaymentRecordByOrder = `
SELECT ` + paymentRecordColumns + `
FROM payment_records
WHERE order_id = $1
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetPaymentRecordByOrder(ctx context.Context, orderID uuid.UUID) (PaymentRecord, error) {
	return scanPaymentRecord(q.db.QueryRow(ctx, getPaymentRecordByOrder, orderID))
}

type UpdatePaymentRecordStatusParams struct {
	ID            uuid.UUID
	Status        PaymentRecordStatus
	PaymentStatus PaymentStatus
}

const updatePaymentRecordStatus = `
UPDATE payment_records
SET status = $2, payment_status = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + paymentRecordColumns

func (q *Queries) UpdatePaymentRecordStatus(ctx context.Context, arg UpdatePaymentRecordStatusParams) (PaymentRecord, error) {
	return scanPaymentRecord(q.db.QueryRow(ctx, updatePaymentRecordStatus, arg.ID, arg.Status, arg.PaymentStatus))
}

const paymentTransactionColumns = `id, payment_record_id, gateway_txn_id, success, amount_cents, payload, created_at`

func scanPaymentTransaction(row pgx.Row) (PaymentTransaction, error) {
	var t PaymentTransaction
	err := row.Scan(
		&t.ID,
		&t.PaymentRecordID,
		&t.GatewayTxnID,
		&t.Success,
		&t.AmountCents,
		&t.Payload,
		&t.CreatedAt,
	)
	return t, err
}

const getPaymentTransactionByGatewayID = `
SELECT ` + paymentTransactionColumns + `
FROM payment_transactions
WHERE gateway_txn_id = $1`

func (q *Queries) GetPaymentTransactionByGatewayID(ctx context.Context, gatewayTxnID string) (PaymentTransaction, error) {
	return scanPaymentTransaction(q.db.QueryRow(ctx, getPaymentTransactionByGatewayID, gatewayTxnID))
}

type CreatePaymentTransactionParams struct {
	PaymentRecordID uuid.UUID
	GatewayTxnID    string
	Success         bool
	AmountCents     int64
	Payload         []byte
}

// createPaymentTransaction hits the unique constraint on gateway_txn_id
// when the same webhook is delivered twice; callers treat 23505 as a
// successful no-op.
const createPaymentTransaction = `
INSERT INTO payment_transactions (payment_record_id, gateway_txn_id, success, amount_cents, payload)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + paymentTransactionColumns

func (q *Queries) CreatePaymentTransaction(ctx context.Context, arg CreatePaymentTransactionParams) (PaymentTransaction, error) {
	return scanPaymentTransaction(q.db.QueryRow(ctx, createPaymentTransaction,
		arg.PaymentRecordID, arg.GatewayTxnID, arg.Success, arg.AmountCents, arg.Payload))
}
