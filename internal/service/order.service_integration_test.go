package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tharunsai190/classy-commerce-storefront/internal/database/dbtest"
	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
	"github.com/tharunsai190/classy-commerce-storefront/internal/repo"
	"github.com/tharunsai190/classy-commerce-storefront/internal/service"
)

type stack struct {
	db        *sql.DB
	catalog   repo.CatalogRepo
	inventory repo.InventoryRepo
	orders    repo.OrderRepo
	outbox    repo.OutboxRepo
	svc       service.OrderService
}

func newStack(t *testing.T) *stack {
	db := dbtest.Postgres(t)
	s := &stack{
		db:        db,
		catalog:   repo.NewCatalogRepo(db),
		inventory: repo.NewInventoryRepo(db),
		orders:    repo.NewOrderRepo(db),
		outbox:    repo.NewOutboxRepo(db),
	}
	s.svc = service.NewOrderService(db, s.catalog, s.inventory, s.orders, s.outbox, zap.NewNop(), service.Options{MaxAttempts: 3})
	return s
}

func (s *stack) seed(t *testing.T, p domain.Product) {
	t.Helper()
	require.NoError(t, s.catalog.UpsertProduct(context.Background(), &p))
}

func (s *stack) stock(t *testing.T, id string) int {
	t.Helper()
	n, err := s.inventory.Stock(context.Background(), id)
	require.NoError(t, err)
	return n
}

func (s *stack) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func checkout(userID string, lines ...domain.CartLine) domain.PlaceOrderRequest {
	return domain.PlaceOrderRequest{
		UserID: userID,
		Lines:  lines,
		ShippingAddress: domain.Address{
			Name: "Jo Park", Street: "9 Elm St", City: "Portland",
			State: "OR", PostalCode: "97201", Country: "US",
		},
		PaymentMethod: domain.PaymentCreditCard,
	}
}

func TestPlaceOrder_NoOversellUnderConcurrency(t *testing.T) {
	s := newStack(t)
	s.seed(t, domain.Product{ID: "hot-item", Name: "Sneakers", Price: decimal.RequireFromString("50.00"), Stock: 5})

	const buyers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		soldOut  int
		otherErr []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.PlaceOrder(context.Background(),
				checkout(fmt.Sprintf("buyer-%d", i), domain.CartLine{ProductID: "hot-item", Quantity: 1}))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOut++
			default:
				otherErr = append(otherErr, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, otherErr)
	assert.Equal(t, 5, placed)
	assert.Equal(t, 5, soldOut)
	assert.Equal(t, 0, s.stock(t, "hot-item"))
	assert.Equal(t, 5, s.count(t, "orders"))
	assert.Equal(t, 5, s.count(t, "order_lines"))
}

func TestPlaceOrder_FailureLeavesNoTrace(t *testing.T) {
	s := newStack(t)
	s.seed(t, domain.Product{ID: "p-a", Name: "Belt", Price: decimal.RequireFromString("20.00"), Stock: 10})
	s.seed(t, domain.Product{ID: "p-b", Name: "Hat", Price: decimal.RequireFromString("30.00"), Stock: 1})

	// p-a is reserved before p-b runs short.
	_, err := s.svc.PlaceOrder(context.Background(), checkout("user-1",
		domain.CartLine{ProductID: "p-b", Quantity: 3},
		domain.CartLine{ProductID: "p-a", Quantity: 2},
	))
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "p-b", ise.ProductID)
	assert.Equal(t, 1, ise.Available)

	_, err = s.svc.PlaceOrder(context.Background(), checkout("user-1",
		domain.CartLine{ProductID: "p-a", Quantity: 2},
		domain.CartLine{ProductID: "p-zz", Quantity: 1},
	))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	assert.Equal(t, 10, s.stock(t, "p-a"))
	assert.Equal(t, 1, s.stock(t, "p-b"))
	assert.Zero(t, s.count(t, "orders"))
	assert.Zero(t, s.count(t, "order_lines"))
	assert.Zero(t, s.count(t, "outbox"))
}

func TestPlaceOrder_ReadBackAndPricing(t *testing.T) {
	s := newStack(t)
	s.seed(t, domain.Product{
		ID: "coat", Name: "Wool Coat", Image: "coat-front.jpg",
		Price:     decimal.RequireFromString("100.00"),
		SalePrice: decimal.NewNullDecimal(decimal.RequireFromString("80.00")),
		Stock:     5,
	})
	s.seed(t, domain.Product{ID: "sock", Name: "Socks", Price: decimal.RequireFromString("4.50"), Stock: 20})

	size := "L"
	order, err := s.svc.PlaceOrder(context.Background(), checkout("user-7",
		domain.CartLine{ProductID: "sock", Quantity: 4},
		domain.CartLine{ProductID: "coat", Quantity: 1, Size: &size},
	))
	require.NoError(t, err)

	// Sale price wins: 4 x 4.50 + 1 x 80.00.
	assert.True(t, decimal.RequireFromString("98.00").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)

	got, err := s.svc.GetOrder(context.Background(), order.ID, "user-7")
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(got.TotalAmount))
	assert.Equal(t, order.ShippingAddress, got.ShippingAddress)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "sock", got.Lines[0].ProductID)
	assert.Equal(t, 4, got.Lines[0].Quantity)
	assert.Equal(t, "coat", got.Lines[1].ProductID)
	assert.Equal(t, "Wool Coat", got.Lines[1].ProductName)
	assert.Equal(t, "coat-front.jpg", got.Lines[1].ProductImage)
	assert.True(t, decimal.RequireFromString("80.00").Equal(got.Lines[1].UnitPrice))
	require.NotNil(t, got.Lines[1].Size)
	assert.Equal(t, "L", *got.Lines[1].Size)

	assert.Equal(t, 16, s.stock(t, "sock"))
	assert.Equal(t, 4, s.stock(t, "coat"))

	pending, err := s.outbox.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, order.ID.String(), pending[0].Key)

	list, err := s.svc.ListOrders(context.Background(), "user-7")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, order.ID, list[0].ID)
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	s := newStack(t)
	s.seed(t, domain.Product{ID: "mug", Name: "Mug", Price: decimal.RequireFromString("12.00"), Stock: 3})
	order, err := s.svc.PlaceOrder(context.Background(), checkout("user-2", domain.CartLine{ProductID: "mug", Quantity: 1}))
	require.NoError(t, err)

	_, err = s.svc.UpdateStatus(context.Background(), order.ID, domain.OrderDelivered, nil)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	updated, err := s.svc.UpdateStatus(context.Background(), order.ID, domain.OrderProcessing, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderProcessing, updated.Status)

	tracking := "1Z999"
	updated, err = s.svc.UpdateStatus(context.Background(), order.ID, domain.OrderShipped, &tracking)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, updated.Status)
	require.NotNil(t, updated.TrackingReference)
	assert.Equal(t, "1Z999", *updated.TrackingReference)
	assert.Len(t, updated.Lines, 1)

	// placed + two status changes
	assert.Equal(t, 3, s.count(t, "outbox"))
}
