package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement and payment reconciliation outcomes.
type CheckoutMetrics struct {
	ordersPlaced *prometheus.CounterVec
	failures     *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed successfully.",
	}, []string{"payment_method"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout attempts that did not produce an order.",
	}, []string{"reason"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Payment gateway webhook deliveries by outcome.",
	}, []string{"result"})
	reg.MustRegister(ordersPlaced, failures, webhooks)
	return &CheckoutMetrics{
		ordersPlaced: ordersPlaced,
		failures:     failures,
		webhooks:     webhooks,
	}
}

// IncOrderPlaced increments the placed-order counter for the payment method.
func (c *CheckoutMetrics) IncOrderPlaced(paymentMethod string) {
	if c == nil || c.ordersPlaced == nil {
		return
	}
	c.ordersPlaced.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// IncFailure increments the checkout failure counter for the given reason.
func (c *CheckoutMetrics) IncFailure(reason string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncWebhook increments the webhook counter for the given outcome.
func (c *CheckoutMetrics) IncWebhook(result string) {
	if c == nil || c.webhooks == nil {
		return
	}
	c.webhooks.WithLabelValues(normalizeLabel(result)).Inc()
}
