// Package pricing computes line and order totals from catalog prices, plus
// the shipping and tax adjustments shown to the shopper at checkout.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
)

type LineTotal struct {
	UnitPrice decimal.Decimal
	Quantity  int
	Total     decimal.Decimal
}

// UnitPrice returns the sale price when the catalog has one, else the list
// price. A sale price above the list price is still honored.
func UnitPrice(p domain.Product) decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

func Line(p domain.Product, quantity int) LineTotal {
	unit := UnitPrice(p)
	return LineTotal{
		UnitPrice: unit,
		Quantity:  quantity,
		Total:     unit.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

func Total(lines []LineTotal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}
	return total
}
