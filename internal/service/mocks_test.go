package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/notify"
)

// --- Shared mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rolledBack = true
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  *mockTx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockSender implements notify.Sender. The zero value swallows every
// push successfully.
type mockSender struct {
	sendToTokenFn  func(ctx context.Context, token string, msg notify.Notification) error
	sendToTokensFn func(ctx context.Context, tokens []string, msg notify.Notification) (notify.BatchResult, error)
	sent           []string
}

func (m *mockSender) SendToToken(ctx context.Context, token string, msg notify.Notification) error {
	m.sent = append(m.sent, token)
	if m.sendToTokenFn != nil {
		return m.sendToTokenFn(ctx, token, msg)
	}
	return nil
}

func (m *mockSender) SendToTokens(ctx context.Context, tokens []string, msg notify.Notification) (notify.BatchResult, error) {
	m.sent = append(m.sent, tokens...)
	if m.sendToTokensFn != nil {
		return m.sendToTokensFn(ctx, tokens, msg)
	}
	return notify.BatchResult{SuccessCount: len(tokens)}, nil
}

// mockNotifierStore implements NotifierStore. The zero value has no
// registered tokens, so notifications become no-ops.
type mockNotifierStore struct {
	getRestaurantFn func(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	getUserFn       func(ctx context.Context, id uuid.UUID) (database.User, error)
	courierTokensFn func(ctx context.Context, city string) ([]database.CourierTokenRow, error)
	clearedUsers    []uuid.UUID
}

func (m *mockNotifierStore) GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error) {
	if m.getRestaurantFn != nil {
		return m.getRestaurantFn(ctx, id)
	}
	return database.Restaurant{ID: id}, nil
}
func (m *mockNotifierStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return database.User{ID: id}, nil
}
func (m *mockNotifierStore) ListCourierTokensByCity(ctx context.Context, city string) ([]database.CourierTokenRow, error) {
	if m.courierTokensFn != nil {
		return m.courierTokensFn(ctx, city)
	}
	return nil, nil
}
func (m *mockNotifierStore) ClearUserFcmToken(ctx context.Context, id uuid.UUID) error {
	m.clearedUsers = append(m.clearedUsers, id)
	return nil
}
func (m *mockNotifierStore) ClearRestaurantFcmToken(ctx context.Context, id uuid.UUID) error {
	return nil
}

// newTestNotifier returns a Notifier whose pushes all land in the void.
func newTestNotifier() *Notifier {
	return NewNotifier(&mockNotifierStore{}, &mockSender{}, nil)
}

// --- Shared helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}
