package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
	"github.com/tharunsai190/classy-commerce-storefront/internal/repo"
)

// txLog counts what the engine did with its transactions. The fake driver
// below hands out transactions that touch nothing but this log.
type txLog struct {
	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
	commitErr error
}

func (l *txLog) counts() (begins, commits, rollbacks int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.begins, l.commits, l.rollbacks
}

type fakeConnector struct{ log *txLog }

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) { return &fakeConn{log: c.log}, nil }
func (c *fakeConnector) Driver() driver.Driver                        { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return nil, errors.New("open through the connector") }

type fakeConn struct{ log *txLog }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fake connection runs no statements")
}
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	c.log.begins++
	return &fakeTx{log: c.log}, nil
}

type fakeTx struct{ log *txLog }

func (t *fakeTx) Commit() error {
	t.log.mu.Lock()
	defer t.log.mu.Unlock()
	t.log.commits++
	return t.log.commitErr
}

func (t *fakeTx) Rollback() error {
	t.log.mu.Lock()
	defer t.log.mu.Unlock()
	t.log.rollbacks++
	return nil
}

func newFakeDB(t *testing.T) (*sql.DB, *txLog) {
	log := &txLog{}
	db := sql.OpenDB(&fakeConnector{log: log})
	t.Cleanup(func() { db.Close() })
	return db, log
}

// countingBeginner fails the test if anything tries to open a transaction.
type countingBeginner struct{ calls int }

func (b *countingBeginner) BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error) {
	b.calls++
	return nil, errors.New("storage must not be touched")
}

type fakeCatalog struct {
	products map[string]domain.Product
	err      error
	calls    []string
}

func (f *fakeCatalog) GetProduct(_ context.Context, _ *sql.Tx, id string) (*domain.Product, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeCatalog) UpsertProduct(context.Context, *domain.Product) error { return nil }

type reservation struct {
	productID string
	quantity  int
}

type fakeInventory struct {
	errs  map[string]error
	calls []reservation
}

func (f *fakeInventory) Reserve(_ context.Context, _ *sql.Tx, productID string, quantity int) error {
	f.calls = append(f.calls, reservation{productID, quantity})
	return f.errs[productID]
}

func (f *fakeInventory) Stock(context.Context, string) (int, error) { return 0, nil }

type fakeOrders struct {
	insertErrs []error
	linesErr   error
	inserted   []*domain.Order
	lines      []domain.OrderLine

	found     *domain.Order
	findErr   error
	updated   *domain.Order
	getResult *domain.Order
}

func (f *fakeOrders) InsertOrder(_ context.Context, _ *sql.Tx, order *domain.Order) error {
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	f.inserted = append(f.inserted, order)
	return nil
}

func (f *fakeOrders) InsertOrderLines(_ context.Context, _ *sql.Tx, lines []domain.OrderLine) error {
	if f.linesErr != nil {
		return f.linesErr
	}
	f.lines = append(f.lines, lines...)
	return nil
}

func (f *fakeOrders) GetOrderByID(_ context.Context, id uuid.UUID, _ string) (*domain.Order, error) {
	if f.getResult != nil && f.getResult.ID == id {
		return f.getResult, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (f *fakeOrders) ListOrdersForUser(context.Context, string) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakeOrders) FindForUpdate(context.Context, *sql.Tx, uuid.UUID) (*domain.Order, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	o := *f.found
	return &o, nil
}

func (f *fakeOrders) UpdateOrderStatus(_ context.Context, _ *sql.Tx, order *domain.Order) error {
	o := *order
	f.updated = &o
	f.getResult = &o
	return nil
}

type fakeOutbox struct {
	payloads []any
}

func (f *fakeOutbox) Insert(_ context.Context, _ *sql.Tx, _ uuid.UUID, _, _ string, payload any) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeOutbox) FetchPending(context.Context, int) ([]repo.OutboxRecord, error) { return nil, nil }
func (f *fakeOutbox) MarkSent(context.Context, int64) error                  { return nil }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }
