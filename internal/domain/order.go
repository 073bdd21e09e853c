package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
}

// CanTransitionTo reports whether fulfillment may move an order from s to next.
// Delivered and cancelled are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type Address struct {
	Name       string `json:"name" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone,omitempty"`
}

type Order struct {
	ID                uuid.UUID       `json:"id"`
	UserID            string          `json:"user_id"`
	Lines             []OrderLine     `json:"lines"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            OrderStatus     `json:"status"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	ShippingAddress   Address         `json:"shipping_address"`
	TrackingReference *string         `json:"tracking_reference,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderLine carries the product name and image as they were when the order
// was placed, so later catalog edits do not rewrite history.
type OrderLine struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	Position     int             `json:"position"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	Size         *string         `json:"size,omitempty"`
	Color        *string         `json:"color,omitempty"`
}

func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
