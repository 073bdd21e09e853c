package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
	"github.com/tharunsai190/classy-commerce-storefront/internal/infrastructure/events"
	"github.com/tharunsai190/classy-commerce-storefront/internal/metrics"
	"github.com/tharunsai190/classy-commerce-storefront/internal/pricing"
	"github.com/tharunsai190/classy-commerce-storefront/internal/repo"
)

// maxOrderTotal is the largest amount orders.total_amount NUMERIC(12,2) holds.
var maxOrderTotal = decimal.RequireFromString("9999999999.99")

type OrderService interface {
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID, userID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus, tracking *string) (*domain.Order, error)
}

// TxBeginner is satisfied by *sql.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type Options struct {
	// MaxAttempts bounds retries of serialization failures and deadlocks.
	MaxAttempts int
	Topic       string
	Metrics     *metrics.Metrics
}

type orderService struct {
	db        TxBeginner
	catalog   repo.CatalogRepo
	inventory repo.InventoryRepo
	orderRepo repo.OrderRepo
	outbox    repo.OutboxRepo
	log       *zap.Logger
	metrics   *metrics.Metrics
	validate  *validator.Validate

	maxAttempts int
	topic       string
}

// NewOrderService wires the placement engine. outbox may be nil, in which
// case no events are recorded.
func NewOrderService(
	db TxBeginner,
	catalog repo.CatalogRepo,
	inventory repo.InventoryRepo,
	orderRepo repo.OrderRepo,
	outbox repo.OutboxRepo,
	log *zap.Logger,
	opts Options,
) OrderService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Topic == "" {
		opts.Topic = "storefront.orders"
	}
	return &orderService{
		db:          db,
		catalog:     catalog,
		inventory:   inventory,
		orderRepo:   orderRepo,
		outbox:      outbox,
		log:         log,
		metrics:     opts.Metrics,
		validate:    newValidator(),
		maxAttempts: opts.MaxAttempts,
		topic:       opts.Topic,
	}
}

// PlaceOrder turns a cart into a persisted order. Stock reservation, the
// order row, its lines and the outbox event commit together or not at all.
func (s *orderService) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	start := time.Now()
	order, err := s.placeOrder(ctx, req)
	s.metrics.ObservePlacement(outcome(err), time.Since(start))

	if err != nil {
		fields := []zap.Field{zap.String("user_id", req.UserID), zap.Error(err)}
		if errors.Is(err, domain.ErrTransient) {
			s.log.Error("order placement failed", fields...)
		} else {
			s.log.Info("order placement rejected", fields...)
		}
		return nil, err
	}

	s.log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID),
		zap.Int("lines", len(order.Lines)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return order, nil
}

func (s *orderService) placeOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	req = normalize(req)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	quantities, err := quantitiesByProduct(req.Lines)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var order *domain.Order
		order, err = s.placeOnce(ctx, req, quantities)
		if err == nil {
			return order, nil
		}
		code, retry := retryable(err)
		if !retry || ctx.Err() != nil {
			return nil, err
		}
		s.metrics.ObserveRetry(code)
		s.log.Warn("retrying order placement",
			zap.String("user_id", req.UserID),
			zap.Int("attempt", attempt),
			zap.String("sqlstate", code))
	}
	return nil, err
}

// placeOnce runs one placement transaction. Any return before Commit rolls
// everything back, including stock already reserved.
func (s *orderService) placeOnce(ctx context.Context, req domain.PlaceOrderRequest, quantities map[string]int) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, transient("begin transaction", err)
	}
	defer tx.Rollback()

	// Reserve in ascending product id so two checkouts sharing products
	// always lock rows in the same order.
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	products := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		p, err := s.catalog.GetProduct(ctx, tx, id)
		if err != nil {
			return nil, transient("read product", err)
		}
		if p == nil {
			return nil, &domain.ProductNotFoundError{ProductID: id}
		}
		if err := s.inventory.Reserve(ctx, tx, id, quantities[id]); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrProductNotFound) {
				return nil, err
			}
			return nil, transient("reserve stock", err)
		}
		products[id] = p
	}

	order := buildOrder(req, products)
	if order.TotalAmount.GreaterThan(maxOrderTotal) {
		return nil, &domain.ValidationError{
			Field:  "lines",
			Reason: fmt.Sprintf("order total %s exceeds %s", order.TotalAmount.StringFixed(2), maxOrderTotal.StringFixed(2)),
		}
	}

	if err := s.orderRepo.InsertOrder(ctx, tx, order); err != nil {
		return nil, transient("insert order", err)
	}
	if err := s.orderRepo.InsertOrderLines(ctx, tx, order.Lines); err != nil {
		return nil, transient("insert order lines", err)
	}
	if s.outbox != nil {
		evt := events.NewOrderPlaced(order)
		if err := s.outbox.Insert(ctx, tx, evt.EventID, s.topic, order.ID.String(), evt); err != nil {
			return nil, transient("insert outbox event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, transient("commit", err)
	}
	return order, nil
}

// buildOrder prices every line from the catalog snapshot and keeps the cart's
// line order.
func buildOrder(req domain.PlaceOrderRequest, products map[string]*domain.Product) *domain.Order {
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          req.UserID,
		Status:          domain.OrderPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.PaymentPending,
		ShippingAddress: req.ShippingAddress,
		Lines:           make([]domain.OrderLine, len(req.Lines)),
	}

	totals := make([]pricing.LineTotal, len(req.Lines))
	for i, l := range req.Lines {
		p := products[l.ProductID]
		totals[i] = pricing.Line(*p, l.Quantity)
		order.Lines[i] = domain.OrderLine{
			ID:           uuid.New(),
			OrderID:      order.ID,
			Position:     i,
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductImage: p.Image,
			UnitPrice:    totals[i].UnitPrice,
			Quantity:     l.Quantity,
			Size:         l.Size,
			Color:        l.Color,
		}
	}
	order.TotalAmount = pricing.Total(totals)
	return order
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID, userID string) (*domain.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, id, userID)
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, transient("get order", err)
	}
	return order, err
}

func (s *orderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orderRepo.ListOrdersForUser(ctx, userID)
	if err != nil {
		return nil, transient("list orders", err)
	}
	return orders, nil
}

// UpdateStatus is the entry point for fulfillment workflows. A nil tracking
// reference leaves the stored one untouched.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus, tracking *string) (*domain.Order, error) {
	if !next.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a recognized order status", next)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, transient("begin transaction", err)
	}
	defer tx.Rollback()

	order, err := s.orderRepo.FindForUpdate(ctx, tx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, transient("find order", err)
	}

	prev := order.Status
	if !prev.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, prev, next)
	}
	order.Status = next
	if tracking != nil {
		order.TrackingReference = tracking
	}
	if err := s.orderRepo.UpdateOrderStatus(ctx, tx, order); err != nil {
		return nil, transient("update order status", err)
	}

	if s.outbox != nil {
		evt := events.OrderStatusChanged{
			EventID:           uuid.New(),
			Type:              events.TypeOrderStatusChanged,
			OrderID:           order.ID,
			From:              prev,
			To:                next,
			TrackingReference: order.TrackingReference,
			ChangedAt:         order.UpdatedAt,
		}
		if err := s.outbox.Insert(ctx, tx, evt.EventID, s.topic, order.ID.String(), evt); err != nil {
			return nil, transient("insert outbox event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, transient("commit", err)
	}

	s.log.Info("order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))

	return s.GetOrder(ctx, order.ID, order.UserID)
}

func transient(op string, err error) error {
	return &domain.TransientError{Op: op, Err: err}
}

// retryable reports serialization failures and deadlocks, the only errors
// where running the same transaction again can succeed.
func retryable(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return pgErr.Code, true
		}
	}
	return "", false
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrValidation):
		return metrics.OutcomeValidation
	case errors.Is(err, domain.ErrProductNotFound):
		return metrics.OutcomeProductNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.OutcomeInsufficientStock
	}
	return metrics.OutcomeTransient
}
