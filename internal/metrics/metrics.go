// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cart cache
	CartCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_cache_requests_total",
			Help: "Cart cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	CartCacheWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_cache_write_errors_total",
			Help: "Cart cache writes that failed and were swallowed",
		},
		[]string{"operation"}, // "put", "invalidate"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Orders
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_orders_total",
			Help: "Order creation attempts by source and result",
		},
		[]string{"source", "result"}, // source: "cart", "anonymous"; result: "created", "empty", "invalid", "error"
	)

	OrderTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_order_tx_duration_seconds",
			Help:    "Duration of order creation transactions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Payments
	PaymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_callbacks_total",
			Help: "Payment gateway callbacks by outcome",
		},
		[]string{"outcome"}, // "paid", "already_processed", "cancelled", "invalid_signature", "not_found", "error"
	)

	CampaignsFinished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_campaigns_finished_total",
			Help: "Fundraising campaigns that crossed their objective",
		},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_notification_failures_total",
			Help: "Notifications that failed after commit",
		},
		[]string{"kind"},
	)
)
