package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	OrdersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created at checkout, by payment method",
		},
		[]string{"payment_method"},
	)

	OrderStatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_updates_total",
			Help: "Order status assignments, by target status and whether it moved backwards",
		},
		[]string{"status", "regression"},
	)

	StockAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_alerts_total",
			Help: "Stock threshold crossings detected, by kind",
		},
		[]string{"kind"},
	)

	AlertDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_alert_dispatch_total",
			Help: "Stock alert deliveries, by result (sent, failed, duplicate)",
		},
		[]string{"result"},
	)
)

// Register registers all collectors on the default registry. Call once per process.
func Register() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OrdersCreatedTotal,
		OrderStatusUpdatesTotal,
		StockAlertsTotal,
		AlertDispatchTotal,
	)
}
