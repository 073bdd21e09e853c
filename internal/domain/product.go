package domain

import "github.com/shopspring/decimal"

// Product is the authoritative catalog row as read inside a placement
// transaction.
type Product struct {
	ID        string
	Name      string
	Image     string
	Price     decimal.Decimal
	SalePrice decimal.NullDecimal
	Stock     int
}
