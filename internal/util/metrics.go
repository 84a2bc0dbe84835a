package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	}, []string{"payment_method"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrderStatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_updates_total",
		Help: "Total number of vendor order status updates",
	}, []string{"status"})

	PlaceOrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "place_order_latency_seconds",
		Help:    "Latency of order placement",
		Buckets: prometheus.DefBuckets,
	})

	StockRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_rejections_total",
		Help: "Total number of order placements rejected for insufficient stock",
	})

	StockAdjustmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of manual stock adjustments",
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"action"})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payment records created",
	}, []string{"method", "status"})

	ImageUploadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_upload_failures_total",
		Help: "Total number of product image uploads skipped after a storage failure",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of order notifications dispatched",
	}, []string{"channel"})

	NotificationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Total number of failed order notifications",
	}, []string{"channel"})

	CheckoutLockContendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_lock_contended_total",
		Help: "Total number of checkouts rejected because another checkout held the lock",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
