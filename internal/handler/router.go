package handler

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tharunsai190/classy-commerce-storefront/internal/logger"
	"github.com/tharunsai190/classy-commerce-storefront/internal/metrics"
)

type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type RouterConfig struct {
	Orders         *OrderHandler
	Health         HealthChecker
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Log            *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(logger.Middleware(cfg.Log))
	r.Use(cfg.Metrics.Middleware())
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", UserIDHeader, logger.RequestIDHeader},
			ExposeHeaders:    []string{logger.RequestIDHeader},
			AllowCredentials: true,
		}))
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/orders", cfg.Orders.PlaceOrder)
		v1.GET("/orders", cfg.Orders.ListOrders)
		v1.GET("/orders/:id", cfg.Orders.GetOrder)
		v1.PATCH("/admin/orders/:id/status", cfg.Orders.UpdateStatus)
	}

	r.GET("/health", func(c *gin.Context) {
		stats := cfg.Health.Health(c.Request.Context())
		if stats["status"] != "up" {
			c.JSON(http.StatusServiceUnavailable, stats)
			return
		}
		c.JSON(http.StatusOK, stats)
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(cfg.Gatherer)))
	}
	return r
}
