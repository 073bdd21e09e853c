package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
)

type OrderRepo interface {
	InsertOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	InsertOrderLines(ctx context.Context, tx *sql.Tx, lines []domain.OrderLine) error
	GetOrderByID(ctx context.Context, id uuid.UUID, userID string) (*domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error)
	FindForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, tx *sql.Tx, order *domain.Order) error
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `
	o.id, o.user_id, o.total_amount, o.status, o.payment_method, o.payment_status,
	o.ship_name, o.ship_street, o.ship_city, o.ship_state, o.ship_postal_code, o.ship_country,
	COALESCE(o.ship_phone, ''), o.tracking_reference, o.created_at, o.updated_at`

const lineColumns = `
	l.id, l.order_id, l.position, l.product_id, l.product_name, l.product_image,
	l.unit_price, l.quantity, l.size, l.color`

type scanner interface {
	Scan(dest ...any) error
}

func orderFields(o *domain.Order) []any {
	a := &o.ShippingAddress
	return []any{
		&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&a.Name, &a.Street, &a.City, &a.State, &a.PostalCode, &a.Country,
		&a.Phone, &o.TrackingReference, &o.CreatedAt, &o.UpdatedAt,
	}
}

func lineFields(l *domain.OrderLine) []any {
	return []any{
		&l.ID, &l.OrderID, &l.Position, &l.ProductID, &l.ProductName, &l.ProductImage,
		&l.UnitPrice, &l.Quantity, &l.Size, &l.Color,
	}
}

// InsertOrder stores the order header and confirms its timestamps from the
// database clock.
func (r *orderRepo) InsertOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, total_amount, status, payment_method, payment_status,
			ship_name, ship_street, ship_city, ship_state, ship_postal_code, ship_country, ship_phone
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		RETURNING created_at, updated_at
	`
	a := order.ShippingAddress
	return tx.QueryRowContext(ctx, query,
		order.ID, order.UserID, order.TotalAmount, order.Status, order.PaymentMethod, order.PaymentStatus,
		a.Name, a.Street, a.City, a.State, a.PostalCode, a.Country, a.Phone,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
}

func (r *orderRepo) InsertOrderLines(ctx context.Context, tx *sql.Tx, lines []domain.OrderLine) error {
	query := `
		INSERT INTO order_lines (
			id, order_id, position, product_id, product_name, product_image, unit_price, quantity, size, color
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, l := range lines {
		_, err := tx.ExecContext(ctx, query,
			l.ID, l.OrderID, l.Position, l.ProductID, l.ProductName, l.ProductImage,
			l.UnitPrice, l.Quantity, l.Size, l.Color,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetOrderByID only returns orders owned by userID.
func (r *orderRepo) GetOrderByID(ctx context.Context, id uuid.UUID, userID string) (*domain.Order, error) {
	orders, err := r.queryOrders(ctx, `o.id = $1 AND o.user_id = $2`, id, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrOrderNotFound
	}
	return &orders[0], nil
}

// ListOrdersForUser returns the user's orders newest first.
func (r *orderRepo) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.queryOrders(ctx, `o.user_id = $1`, userID)
}

func (r *orderRepo) queryOrders(ctx context.Context, where string, args ...any) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `,` + lineColumns + `
		FROM orders o
		JOIN order_lines l ON l.order_id = o.id
		WHERE ` + where + `
		ORDER BY o.created_at DESC, o.id, l.position`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var l domain.OrderLine
		if err := rows.Scan(append(orderFields(&o), lineFields(&l)...)...); err != nil {
			return nil, err
		}
		if n := len(orders); n > 0 && orders[n-1].ID == o.ID {
			orders[n-1].Lines = append(orders[n-1].Lines, l)
			continue
		}
		o.Lines = []domain.OrderLine{l}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// FindForUpdate locks the order header for a status change. Lines are not
// loaded.
func (r *orderRepo) FindForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id), &order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func scanOrder(row scanner, o *domain.Order) error {
	return row.Scan(orderFields(o)...)
}

func (r *orderRepo) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	return tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, tracking_reference = $2, updated_at = now() WHERE id = $3 RETURNING updated_at`,
		order.Status, order.TrackingReference, order.ID,
	).Scan(&order.UpdatedAt)
}
