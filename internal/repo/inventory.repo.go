package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
)

// InventoryRepo is the only writer of product stock on the placement path.
type InventoryRepo interface {
	// Reserve decrements stock by quantity iff at least quantity is on hand.
	// The check and the decrement are one statement, so two transactions
	// racing for the last units serialize on the row lock and the loser sees
	// zero rows affected.
	Reserve(ctx context.Context, tx *sql.Tx, productID string, quantity int) error
	Stock(ctx context.Context, productID string) (int, error)
}

type inventoryRepo struct {
	db *sql.DB
}

func NewInventoryRepo(db *sql.DB) InventoryRepo {
	return &inventoryRepo{db: db}
}

func (r *inventoryRepo) Reserve(ctx context.Context, tx *sql.Tx, productID string, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// Nothing was decremented; report what is left for the caller's cart.
	var available int
	err = tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return fmt.Errorf("read remaining stock: %w", err)
	}
	return &domain.InsufficientStockError{
		ProductID: productID,
		Requested: quantity,
		Available: available,
	}
}

func (r *inventoryRepo) Stock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	return stock, err
}
