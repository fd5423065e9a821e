package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sofra-app/api/internal/database"
)

// mockReconcileStore implements ReconcileStore with configurable behavior.
type mockReconcileStore struct {
	getTxnFn       func(ctx context.Context, gatewayTxnID string) (database.PaymentTransaction, error)
	getRecordFn    func(ctx context.Context, gatewayOrderID string) (database.PaymentRecord, error)
	createTxnFn    func(ctx context.Context, arg database.CreatePaymentTransactionParams) (database.PaymentTransaction, error)
	updateRecordFn func(ctx context.Context, arg database.UpdatePaymentRecordStatusParams) (database.PaymentRecord, error)
	setOrderPaidFn func(ctx context.Context, id uuid.UUID) (database.Order, error)
	getOrderFn     func(ctx context.Context, id uuid.UUID) (database.Order, error)

	createdTxns    []database.CreatePaymentTransactionParams
	updatedRecords []database.UpdatePaymentRecordStatusParams
	paidOrders     []uuid.UUID
}

func (m *mockReconcileStore) GetPaymentTransactionByGatewayID(ctx context.Context, gatewayTxnID string) (database.PaymentTransaction, error) {
	if m.getTxnFn != nil {
		return m.getTxnFn(ctx, gatewayTxnID)
	}
	return database.PaymentTransaction{}, pgx.ErrNoRows
}
func (m *mockReconcileStore) GetPaymentRecordByGatewayOrderID(ctx context.Context, gatewayOrderID string) (database.PaymentRecord, error) {
	return m.getRecordFn(ctx, gatewayOrderID)
}
func (m *mockReconcileStore) CreatePaymentTransaction(ctx context.Context, arg database.CreatePaymentTransactionParams) (database.PaymentTransaction, error) {
	m.createdTxns = append(m.createdTxns, arg)
	if m.createTxnFn != nil {
		return m.createTxnFn(ctx, arg)
	}
	return database.PaymentTransaction{ID: uuid.New(), PaymentRecordID: arg.PaymentRecordID, GatewayTxnID: arg.GatewayTxnID}, nil
}
func (m *mockReconcileStore) UpdatePaymentRecordStatus(ctx context.Context, arg database.UpdatePaymentRecordStatusParams) (database.PaymentRecord, error) {
	m.updatedRecords = append(m.updatedRecords, arg)
	if m.updateRecordFn != nil {
		return m.updateRecordFn(ctx, arg)
	}
	return database.PaymentRecord{ID: arg.ID, Status: arg.Status, PaymentStatus: arg.PaymentStatus}, nil
}
func (m *mockReconcileStore) SetOrderPaid(ctx context.Context, id uuid.UUID) (database.Order, error) {
	m.paidOrders = append(m.paidOrders, id)
	if m.setOrderPaidFn != nil {
		return m.setOrderPaidFn(ctx, id)
	}
	return database.Order{ID: id, Status: database.OrderStatusPENDING, PaymentStatus: database.PaymentStatusPAID}, nil
}
func (m *mockReconcileStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{ID: id}, nil
}

// storeWithRecord returns a mockReconcileStore that knows one payment
// record and applies everything else with defaults.
func storeWithRecord(record database.PaymentRecord) *mockReconcileStore {
	return &mockReconcileStore{
		getRecordFn: func(ctx context.Context, gatewayOrderID string) (database.PaymentRecord, error) {
			if gatewayOrderID == record.GatewayOrderID {
				return record, nil
			}
			return database.PaymentRecord{}, pgx.ErrNoRows
		},
	}
}

func newTestReconcileService(store *mockReconcileStore) (*ReconcileService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	return NewReconcileService(pool, func(db database.DBTX) ReconcileStore { return store }, nil, newTestNotifier()), tx
}

func testRecord() database.PaymentRecord {
	return database.PaymentRecord{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		GatewayOrderID: "gw-1001",
		AmountCents:    29600,
		Status:         database.PaymentRecordStatusCREATED,
	}
}

func successEvent() GatewayEvent {
	return GatewayEvent{
		TransactionID:  "txn-1",
		GatewayOrderID: "gw-1001",
		Success:        true,
		AmountCents:    29600,
		Raw:            []byte(`{"obj":{"id":1}}`),
	}
}

func TestApplyGatewayEvent_Success(t *testing.T) {
	record := testRecord()
	store := storeWithRecord(record)
	svc, tx := newTestReconcileService(store)

	if err := svc.ApplyGatewayEvent(context.Background(), successEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Fatal("expected transaction commit")
	}
	if len(store.createdTxns) != 1 {
		t.Fatalf("expected one transaction row, got %d", len(store.createdTxns))
	}
	txn := store.createdTxns[0]
	if txn.PaymentRecordID != record.ID || txn.GatewayTxnID != "txn-1" || !txn.Success {
		t.Fatalf("unexpected transaction row: %+v", txn)
	}
	if len(store.updatedRecords) != 1 {
		t.Fatalf("expected one record update, got %d", len(store.updatedRecords))
	}
	upd := store.updatedRecords[0]
	if upd.Status != database.PaymentRecordStatusCOMPLETED || upd.PaymentStatus != database.PaymentStatusPAID {
		t.Fatalf("expected COMPLETED/PAID, got %s/%s", upd.Status, upd.PaymentStatus)
	}
	if len(store.paidOrders) != 1 || store.paidOrders[0] != record.OrderID {
		t.Fatal("expected the record's order to be advanced")
	}
}

func TestApplyGatewayEvent_Failure(t *testing.T) {
	record := testRecord()
	store := storeWithRecord(record)
	svc, _ := newTestReconcileService(store)

	event := successEvent()
	event.Success = false

	if err := svc.ApplyGatewayEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upd := store.updatedRecords[0]
	if upd.Status != database.PaymentRecordStatusFAILED || upd.PaymentStatus != database.PaymentStatusFAILED {
		t.Fatalf("expected FAILED/FAILED, got %s/%s", upd.Status, upd.PaymentStatus)
	}
	if len(store.paidOrders) != 0 {
		t.Fatal("failed payment must not advance the order")
	}
}

func TestApplyGatewayEvent_ReplayIsNoop(t *testing.T) {
	record := testRecord()
	store := storeWithRecord(record)
	store.getTxnFn = func(ctx context.Context, gatewayTxnID string) (database.PaymentTransaction, error) {
		return database.PaymentTransaction{ID: uuid.New(), GatewayTxnID: gatewayTxnID}, nil
	}
	svc, tx := newTestReconcileService(store)

	if err := svc.ApplyGatewayEvent(context.Background(), successEvent()); err != nil {
		t.Fatalf("replay must return nil, got: %v", err)
	}
	if tx.committed {
		t.Fatal("replay must not commit")
	}
	if len(store.createdTxns) != 0 || len(store.updatedRecords) != 0 || len(store.paidOrders) != 0 {
		t.Fatal("replay must not write anything")
	}
}

func TestApplyGatewayEvent_ConcurrentInsertLoses(t *testing.T) {
	record := testRecord()
	store := storeWithRecord(record)
	store.createTxnFn = func(ctx context.Context, arg database.CreatePaymentTransactionParams) (database.PaymentTransaction, error) {
		return database.PaymentTransaction{}, &pgconn.PgError{Code: "23505"}
	}
	svc, _ := newTestReconcileService(store)

	if err := svc.ApplyGatewayEvent(context.Background(), successEvent()); err != nil {
		t.Fatalf("losing the insert race must return nil, got: %v", err)
	}
	if len(store.updatedRecords) != 0 || len(store.paidOrders) != 0 {
		t.Fatal("the losing delivery must not settle anything")
	}
}

func TestApplyGatewayEvent_UnknownGatewayOrderDropped(t *testing.T) {
	store := &mockReconcileStore{
		getRecordFn: func(ctx context.Context, gatewayOrderID string) (database.PaymentRecord, error) {
			return database.PaymentRecord{}, pgx.ErrNoRows
		},
	}
	svc, _ := newTestReconcileService(store)

	if err := svc.ApplyGatewayEvent(context.Background(), successEvent()); err != nil {
		t.Fatalf("unknown orders are acked and dropped, got: %v", err)
	}
	if len(store.createdTxns) != 0 {
		t.Fatal("unknown orders must not create transaction rows")
	}
}

func TestApplyGatewayEvent_EmptyIDsIgnored(t *testing.T) {
	store := &mockReconcileStore{
		getRecordFn: func(ctx context.Context, gatewayOrderID string) (database.PaymentRecord, error) {
			t.Fatal("must not touch the store")
			return database.PaymentRecord{}, nil
		},
	}
	svc, tx := newTestReconcileService(store)

	if err := svc.ApplyGatewayEvent(context.Background(), GatewayEvent{Success: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.committed || tx.rolledBack {
		t.Fatal("must not open a transaction")
	}
}

func TestApplyGatewayEvent_OrderAlreadyPastUnpaid(t *testing.T) {
	record := testRecord()
	store := storeWithRecord(record)
	store.setOrderPaidFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		return database.Order{}, pgx.ErrNoRows
	}
	store.getOrderFn = func(ctx context.Context, id uuid.UUID) (database.Order, error) {
		return database.Order{ID: id, Status: database.OrderStatusCANCELLED}, nil
	}
	svc, tx := newTestReconcileService(store)

	if err := svc.ApplyGatewayEvent(context.Background(), successEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The transaction row still lands for the audit trail.
	if !tx.committed {
		t.Fatal("expected commit even when the order moved on")
	}
	if len(store.createdTxns) != 1 {
		t.Fatal("expected the transaction row recorded")
	}
}
