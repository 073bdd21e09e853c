package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
	"github.com/tharunsai190/classy-commerce-storefront/internal/logger"
	"github.com/tharunsai190/classy-commerce-storefront/internal/pricing"
	"github.com/tharunsai190/classy-commerce-storefront/internal/service"
)

// UserIDHeader carries the caller identity set by the authenticating proxy.
const UserIDHeader = "X-User-ID"

type OrderHandler struct {
	orderService service.OrderService
	rates        pricing.Rates
	timeout      time.Duration
	log          *zap.Logger
}

func NewOrderHandler(orderService service.OrderService, rates pricing.Rates, timeout time.Duration, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		rates:        rates,
		timeout:      timeout,
		log:          log,
	}
}

// placeOrderBody is the checkout payload. Fields the cart page sends that the
// server recomputes, such as a line price, are not decoded.
type placeOrderBody struct {
	Lines           []domain.CartLine    `json:"lines"`
	ShippingAddress domain.Address       `json:"shipping_address"`
	PaymentMethod   domain.PaymentMethod `json:"payment_method"`
}

type placeOrderResponse struct {
	Order *domain.Order   `json:"order"`
	Quote pricing.Summary `json:"quote"`
}

type updateStatusBody struct {
	Status            domain.OrderStatus `json:"status"`
	TrackingReference *string            `json:"tracking_reference"`
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var body placeOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	order, err := h.orderService.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID:          userID,
		Lines:           body.Lines,
		ShippingAddress: body.ShippingAddress,
		PaymentMethod:   body.PaymentMethod,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, placeOrderResponse{
		Order: order,
		Quote: pricing.Quote(order.TotalAmount, h.rates),
	})
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	orders, err := h.orderService.ListOrders(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), id, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var body updateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	order, err := h.orderService.UpdateStatus(c.Request.Context(), id, body.Status, body.TrackingReference)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func requireUser(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserIDHeader + " header"})
		return "", false
	}
	return userID, true
}

func (h *OrderHandler) writeError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		notFound   *domain.ProductNotFoundError
		stock      *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.As(err, &notFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": notFound.Error(), "product_id": notFound.ProductID})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":      stock.Error(),
			"product_id": stock.ProductID,
			"available":  stock.Available,
		})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrOrderNotFound.Error()})
	case errors.Is(err, domain.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed",
			zap.String("request_id", c.GetString(logger.RequestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "order service temporarily unavailable",
			"request_id": c.GetString(logger.RequestIDKey),
		})
	}
}
