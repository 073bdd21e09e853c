package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
)

// CatalogRepo reads authoritative product rows. Reads inside a placement go
// through the placement's transaction; nothing here takes row locks.
type CatalogRepo interface {
	GetProduct(ctx context.Context, tx *sql.Tx, id string) (*domain.Product, error)
	UpsertProduct(ctx context.Context, p *domain.Product) error
}

type catalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) CatalogRepo {
	return &catalogRepo{db: db}
}

// GetProduct returns nil, nil when the product does not exist.
func (r *catalogRepo) GetProduct(ctx context.Context, tx *sql.Tx, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, COALESCE(images->>0, ''), price, sale_price, stock
		FROM products
		WHERE id = $1
	`
	var p domain.Product
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Image,
		&p.Price,
		&p.SalePrice,
		&p.Stock,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProduct seeds or replaces a catalog row, stock included. Catalog
// management proper lives outside this service.
func (r *catalogRepo) UpsertProduct(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, name, price, sale_price, stock, images)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $6::text = '' THEN '[]'::jsonb ELSE jsonb_build_array($6::text) END)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    price = EXCLUDED.price,
		    sale_price = EXCLUDED.sale_price,
		    stock = EXCLUDED.stock,
		    images = EXCLUDED.images,
		    updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.SalePrice, p.Stock, p.Image)
	return err
}
