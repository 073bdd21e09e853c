package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
)

type OrderPlacedLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderPlaced struct {
	EventID       uuid.UUID            `json:"event_id"`
	Type          string               `json:"type"`
	OrderID       uuid.UUID            `json:"order_id"`
	UserID        string               `json:"user_id"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Lines         []OrderPlacedLine    `json:"lines"`
	PlacedAt      time.Time            `json:"placed_at"`
}

func NewOrderPlaced(o *domain.Order) OrderPlaced {
	lines := make([]OrderPlacedLine, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderPlacedLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return OrderPlaced{
		EventID:       uuid.New(),
		Type:          TypeOrderPlaced,
		OrderID:       o.ID,
		UserID:        o.UserID,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		Lines:         lines,
		PlacedAt:      o.CreatedAt,
	}
}

type OrderStatusChanged struct {
	EventID           uuid.UUID          `json:"event_id"`
	Type              string             `json:"type"`
	OrderID           uuid.UUID          `json:"order_id"`
	From              domain.OrderStatus `json:"from"`
	To                domain.OrderStatus `json:"to"`
	TrackingReference *string            `json:"tracking_reference,omitempty"`
	ChangedAt         time.Time          `json:"changed_at"`
}
