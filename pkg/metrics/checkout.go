package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "grocer"

// CheckoutMetrics tracks checkout outcomes and the side effects that are
// only logged, never surfaced to callers.
type CheckoutMetrics struct {
	outcomes             *prometheus.CounterVec
	offerRejections      *prometheus.CounterVec
	stockRestoreFailures prometheus.Counter
	notificationsDropped prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_outcomes_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})
	offerRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "offer_rejections_total",
		Help:      "Offer codes that were not applied, by reason.",
	}, []string{"reason"})
	stockRestoreFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_restore_failures_total",
		Help:      "Order items whose stock could not be restored after cancellation.",
	})
	notificationsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Notifications dropped because the dispatch queue was full.",
	})
	reg.MustRegister(outcomes, offerRejections, stockRestoreFailures, notificationsDropped)
	return &CheckoutMetrics{
		outcomes:             outcomes,
		offerRejections:      offerRejections,
		stockRestoreFailures: stockRestoreFailures,
		notificationsDropped: notificationsDropped,
	}
}

// IncOutcome counts a checkout attempt. result is "success" or an error reason.
func (c *CheckoutMetrics) IncOutcome(result string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncOfferRejection counts an offer that was looked up but not applied.
func (c *CheckoutMetrics) IncOfferRejection(reason string) {
	if c == nil || c.offerRejections == nil {
		return
	}
	c.offerRejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (c *CheckoutMetrics) IncStockRestoreFailure() {
	if c == nil || c.stockRestoreFailures == nil {
		return
	}
	c.stockRestoreFailures.Inc()
}

func (c *CheckoutMetrics) IncNotificationDropped() {
	if c == nil || c.notificationsDropped == nil {
		return
	}
	c.notificationsDropped.Inc()
}
