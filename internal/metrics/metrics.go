package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	OrdersCreated      prometheus.Counter
	OrderFailures      *prometheus.CounterVec
	StockCompensations prometheus.Counter
	PaymentIntents     *prometheus.CounterVec
	Verifications      *prometheus.CounterVec
	GatewayLatency     prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_created_total",
			Help:      "Orders committed by checkout.",
		}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "order_failures_total",
			Help:      "Checkout attempts that did not produce an order, by reason.",
		}, []string{"reason"}),
		StockCompensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "stock_compensations_total",
			Help:      "Stock decrements rolled back after a failed checkout step.",
		}),
		PaymentIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "payment_intents_total",
			Help:      "Payment intent requests, by result.",
		}, []string{"result"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "payment_verifications_total",
			Help:      "Payment callback verifications, by result.",
		}, []string{"result"}),
		GatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway intent calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.OrdersCreated,
			m.OrderFailures,
			m.StockCompensations,
			m.PaymentIntents,
			m.Verifications,
			m.GatewayLatency,
		)
	}
	return m
}
