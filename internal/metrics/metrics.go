package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Placement outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeValidation        = "validation_error"
	OutcomeProductNotFound   = "product_not_found"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeTransient         = "transient_error"
)

// Metrics methods are no-ops on a nil receiver.
type Metrics struct {
	Placements      *prometheus.CounterVec
	PlacementMS     prometheus.Histogram
	PlacementTries  *prometheus.CounterVec
	OutboxPublished *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_placements_total",
			Help:      "Order placement attempts by outcome.",
		}, []string{"outcome"}),
		PlacementMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_placement_duration_ms",
			Help:      "Order placement latency in milliseconds, retries included.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		PlacementTries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_placement_retries_total",
			Help:      "Placement transactions retried after a serialization failure or deadlock.",
		}, []string{"sqlstate"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox events handled by the relay.",
		}, []string{"result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
	}
	reg.MustRegister(m.Placements, m.PlacementMS, m.PlacementTries, m.OutboxPublished, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) ObservePlacement(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Placements.WithLabelValues(outcome).Inc()
	m.PlacementMS.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveRetry(sqlstate string) {
	if m == nil {
		return
	}
	m.PlacementTries.WithLabelValues(sqlstate).Inc()
}

func (m *Metrics) ObserveOutbox(result string) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
