package domain

// MaxQuantity bounds one line and the summed quantity of one product in a
// single order.
const MaxQuantity = 10000

// CartLine has no price: the price always comes from the catalog.
type CartLine struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"min=1,max=10000"`
	Size      *string `json:"size,omitempty"`
	Color     *string `json:"color,omitempty"`
}

type PlaceOrderRequest struct {
	UserID          string        `json:"user_id" validate:"required"`
	Lines           []CartLine    `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress Address       `json:"shipping_address"`
	PaymentMethod   PaymentMethod `json:"payment_method" validate:"payment_method"`
}
