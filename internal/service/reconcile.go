package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/notify"
)

const seenTxnTTL = 24 * time.Hour

// GatewayEvent is the normalized payload of one gateway webhook call.
type GatewayEvent struct {
	TransactionID  string
	GatewayOrderID string
	Success        bool
	AmountCents    int64
	Raw            []byte
}

// ReconcileStore defines the DB methods needed to apply webhook events.
// Satisfied by *database.Queries (and its WithTx variant).
type ReconcileStore interface {
	GetPaymentTransactionByGatewayID(ctx context.Context, gatewayTxnID string) (database.PaymentTransaction, error)
	GetPaymentRecordByGatewayOrderID(ctx context.Context, gatewayOrderID string) (database.PaymentRecord, error)
	CreatePaymentTransaction(ctx context.Context, arg database.CreatePaymentTransactionParams) (database.PaymentTransaction, error)
	UpdatePaymentRecordStatus(ctx context.Context, arg database.UpdatePaymentRecordStatusParams) (database.PaymentRecord, error)
	SetOrderPaid(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// NewReconcileStore creates a ReconcileStore from a DBTX (pool or tx).
type NewReconcileStore func(db database.DBTX) ReconcileStore

// ReconcileService applies gateway webhook events to payment records and
// orders. Application is idempotent: the transaction id is unique in the
// database, and a Redis check short-circuits the common duplicate before
// touching Postgres at all. The webhook handler always acks; dropping an
// unknown event here is deliberate, since the gateway retries and a
// later replay can still land.
type ReconcileService struct {
	pool     TxBeginner
	newStore NewReconcileStore
	rdb      *redis.Client
	notifier *Notifier
}

// NewReconcileService creates a new ReconcileService. rdb may be nil;
// the database constraint alone keeps application idempotent.
func NewReconcileService(pool TxBeginner, newStore NewReconcileStore, rdb *redis.Client, notifier *Notifier) *ReconcileService {
	return &ReconcileService{pool: pool, newStore: newStore, rdb: rdb, notifier: notifier}
}

// ApplyGatewayEvent records the transaction and, on success, advances
// the order out of UNPAID. Replays of an already-applied transaction
// return nil without changing anything.
func (s *ReconcileService) ApplyGatewayEvent(ctx context.Context, event GatewayEvent) error {
	if event.TransactionID == "" || event.GatewayOrderID == "" {
		return nil
	}

	if s.seenRecently(ctx, event.TransactionID) {
		return nil
	}

	applied, order, err := s.applyTx(ctx, event)
	if err != nil {
		return err
	}
	s.markSeen(ctx, event.TransactionID)
	if !applied {
		return nil
	}

	// The restaurant first hears about a digital order here, once the
	// money is confirmed.
	if event.Success && order.Status == database.OrderStatusPENDING {
		var outbox Outbox
		outbox.Add("notify restaurant", func(ctx context.Context) error {
			return s.notifier.NotifyRestaurant(ctx, order.RestaurantID, notify.Notification{
				Title: "New order",
				Body:  fmt.Sprintf("Order #%d is paid and waiting for review", order.OrderNumber),
				Data:  map[string]string{"order_id": order.ID.String()},
			})
		})
		outbox.Add("broadcast order", func(ctx context.Context) error {
			s.notifier.BroadcastOrderEvent(order.RestaurantID, "order.created", orderEventPayload(order))
			return nil
		})
		outbox.Run(ctx)
	}
	return nil
}

// applyTx does the transactional part. It reports whether this call was
// the one that applied the event.
func (s *ReconcileService) applyTx(ctx context.Context, event GatewayEvent) (bool, database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Already applied? ---
	if _, err := store.GetPaymentTransactionByGatewayID(ctx, event.TransactionID); err == nil {
		return false, database.Order{}, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return false, database.Order{}, fmt.Errorf("get payment transaction: %w", err)
	}

	// --- Resolve the payment record ---
	record, err := store.GetPaymentRecordByGatewayOrderID(ctx, event.GatewayOrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Not ours. Ack and drop; the gateway's retries keep the
			// event available if the record shows up later.
			log.Printf("webhook: dropping event for unknown gateway order %s", event.GatewayOrderID)
			return false, database.Order{}, nil
		}
		return false, database.Order{}, fmt.Errorf("get payment record: %w", err)
	}

	// --- Record the transaction ---
	if _, err := store.CreatePaymentTransaction(ctx, database.CreatePaymentTransactionParams{
		PaymentRecordID: record.ID,
		GatewayTxnID:    event.TransactionID,
		Success:         event.Success,
		AmountCents:     event.AmountCents,
		Payload:         event.Raw,
	}); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A concurrent delivery won the insert.
			return false, database.Order{}, nil
		}
		return false, database.Order{}, fmt.Errorf("create payment transaction: %w", err)
	}

	// --- Settle the record ---
	recordStatus := database.PaymentRecordStatusCOMPLETED
	paymentStatus := database.PaymentStatusPAID
	if !event.Success {
		recordStatus = database.PaymentRecordStatusFAILED
		paymentStatus = database.PaymentStatusFAILED
	}
	if _, err := store.UpdatePaymentRecordStatus(ctx, database.UpdatePaymentRecordStatusParams{
		ID:            record.ID,
		Status:        recordStatus,
		PaymentStatus: paymentStatus,
	}); err != nil {
		return false, database.Order{}, fmt.Errorf("update payment record: %w", err)
	}

	// --- Advance the order ---
	var order database.Order
	if event.Success {
		order, err = store.SetOrderPaid(ctx, record.OrderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Already past UNPAID (cancelled, or paid through an
				// earlier record). The transaction row still lands.
				order, err = store.GetOrder(ctx, record.OrderID)
				if err != nil {
					return false, database.Order{}, fmt.Errorf("get order: %w", err)
				}
			} else {
				return false, database.Order{}, fmt.Errorf("set order paid: %w", err)
			}
		}
	} else {
		order, err = store.GetOrder(ctx, record.OrderID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return false, database.Order{}, fmt.Errorf("get order: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return true, order, nil
}

// seenRecently is the Redis fast path. Redis being down just means every
// duplicate goes through the database check instead.
func (s *ReconcileService) seenRecently(ctx context.Context, txnID string) bool {
	if s.rdb == nil {
		return false
	}
	_, err := s.rdb.Get(ctx, seenTxnKey(txnID)).Result()
	if err == nil {
		return true
	}
	if err != redis.Nil {
		log.Printf("ERROR: webhook dedup read: %v", err)
	}
	return false
}

// markSeen runs after the database has the authoritative row.
func (s *ReconcileService) markSeen(ctx context.Context, txnID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, seenTxnKey(txnID), "1", seenTxnTTL).Err(); err != nil {
		log.Printf("ERROR: webhook dedup write: %v", err)
	}
}

func seenTxnKey(txnID string) string {
	return "webhook:txn:" + txnID
}
