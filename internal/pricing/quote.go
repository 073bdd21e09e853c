package pricing

import "github.com/shopspring/decimal"

// Rates are applied on top of an order total for display. They are never
// persisted with the order.
type Rates struct {
	FreeShippingOver decimal.Decimal
	ShippingFee      decimal.Decimal
	TaxRate          decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{
		FreeShippingOver: decimal.NewFromInt(50),
		ShippingFee:      decimal.RequireFromString("5.99"),
		TaxRate:          decimal.RequireFromString("0.07"),
	}
}

type Summary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Quote adds shipping (waived strictly above FreeShippingOver) and tax
// rounded to cents.
func Quote(subtotal decimal.Decimal, r Rates) Summary {
	shipping := r.ShippingFee
	if subtotal.GreaterThan(r.FreeShippingOver) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(r.TaxRate).Round(2)
	return Summary{
		Subtotal:   subtotal,
		Shipping:   shipping,
		Tax:        tax,
		GrandTotal: subtotal.Add(shipping).Add(tax),
	}
}
