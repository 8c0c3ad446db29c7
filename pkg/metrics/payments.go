package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checkout"

// PaymentMetrics tracks the money path: intent creation, confirmation,
// order materialization and the gaps between them.
type PaymentMetrics struct {
	intents         *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	orders          *prometheus.CounterVec
	gaps            *prometheus.CounterVec
	escalations     prometheus.Counter
	webhookEvents   *prometheus.CounterVec
	paymentFailures prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on reg. A nil registerer
// yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	m := &PaymentMetrics{
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intents_total",
			Help:      "Split payment intents by outcome.",
		}, []string{"outcome"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirmations_total",
			Help:      "Confirm calls by outcome.",
		}, []string{"outcome"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_materialized_total",
			Help:      "Order materialization calls by source and whether a row was inserted.",
		}, []string{"source", "created"}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_gaps_total",
			Help:      "Succeeded payments recorded without an order.",
		}, []string{"reason"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_escalations_total",
			Help:      "Reconciliation records handed to a human.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhook_events_total",
			Help:      "Verified Stripe webhook events by type and handling result.",
		}, []string{"type", "result"}),
		paymentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_failures_total",
			Help:      "payment_intent.payment_failed events received.",
		}),
	}
	reg.MustRegister(m.intents, m.confirmations, m.orders, m.gaps, m.escalations, m.webhookEvents, m.paymentFailures)
	return m
}

func (m *PaymentMetrics) IntentCreated() {
	if m == nil || m.intents == nil {
		return
	}
	m.intents.WithLabelValues("created").Inc()
}

func (m *PaymentMetrics) IntentFailed(reason string) {
	if m == nil || m.intents == nil {
		return
	}
	m.intents.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *PaymentMetrics) Confirmation(outcome string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// OrderMaterialized counts one materializer call. created is false when an
// existing order was returned.
func (m *PaymentMetrics) OrderMaterialized(source string, created bool) {
	if m == nil || m.orders == nil {
		return
	}
	label := "false"
	if created {
		label = "true"
	}
	m.orders.WithLabelValues(normalizeLabel(source), label).Inc()
}

func (m *PaymentMetrics) ReconciliationGap(reason string) {
	if m == nil || m.gaps == nil {
		return
	}
	m.gaps.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *PaymentMetrics) ReconciliationEscalated() {
	if m == nil || m.escalations == nil {
		return
	}
	m.escalations.Inc()
}

func (m *PaymentMetrics) WebhookEvent(eventType, result string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (m *PaymentMetrics) PaymentFailed() {
	if m == nil || m.paymentFailures == nil {
		return
	}
	m.paymentFailures.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
