package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the payment and inventory core
var (
	PaymentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_requests_total",
			Help: "Total number of payment link/url creation attempts",
		},
		[]string{"gateway", "outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Total number of inbound webhook/IPN events",
		},
		[]string{"gateway", "outcome"},
	)

	OrdersMarkedPaidTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_marked_paid_total",
			Help: "Total number of orders transitioned to paid",
		},
	)

	StockMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Total number of stock ledger movements",
		},
		[]string{"type"},
	)

	PostPaymentDeductionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "post_payment_deduction_failures_total",
			Help: "Ingredient deductions that failed after a confirmed payment",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(PaymentRequestsTotal)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(OrdersMarkedPaidTotal)
	prometheus.MustRegister(StockMovements)
	prometheus.MustRegister(PostPaymentDeductionFailures)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}
