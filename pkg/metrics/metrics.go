package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation outcomes. Keep the label set small.
const (
	OutcomeApplied      = "applied"
	OutcomeNoop         = "noop"
	OutcomeConcurrency  = "concurrency_lost"
	OutcomeOrphan       = "orphan"
	OutcomeMalformed    = "malformed"
	OutcomeIgnored      = "ignored"
	OutcomeRetryable    = "retryable_error"
	OutcomeInvalid      = "invalid_request"
	OutcomeUnavailable  = "gateway_unavailable"
	OutcomeSignatureBad = "signature_invalid"
	OutcomeCreated      = "created"
	OutcomeStillPending = "still_pending"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reconcileOutcomes *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	purchaseOutcomes  *prometheus.CounterVec
	webhookRejections prometheus.Counter
	sweepOutcomes     *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer.
func New(registerer prometheus.Registerer, environment string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	environment = strings.TrimSpace(environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": "token_purchases",
		"env":     environment,
	}

	m := &Metrics{
		reconcileOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "token_purchases_reconcile_events_total",
			Help:        "Gateway events processed by the reconciliation engine, by event kind and outcome.",
			ConstLabels: constLabels,
		}, []string{"kind", "outcome"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "token_purchases_reconcile_duration_seconds",
			Help:        "Latency of a single reconciliation apply.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"kind"}),
		purchaseOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "token_purchases_initiations_total",
			Help:        "Purchase initiations by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		webhookRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "token_purchases_webhook_signature_rejections_total",
			Help:        "Webhook deliveries rejected for an invalid signature.",
			ConstLabels: constLabels,
		}),
		sweepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "token_purchases_sweep_transactions_total",
			Help:        "Stale pending transactions examined by the sweeper, by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}

	registerer.MustRegister(m.reconcileOutcomes, m.reconcileDuration, m.purchaseOutcomes, m.webhookRejections, m.sweepOutcomes)
	return m
}

// ObserveReconcile records one engine apply.
func (m *Metrics) ObserveReconcile(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.reconcileOutcomes.WithLabelValues(kind, outcome).Inc()
	m.reconcileDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// ObservePurchase records one purchase initiation.
func (m *Metrics) ObservePurchase(outcome string) {
	if m == nil {
		return
	}
	m.purchaseOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveSignatureRejected records a webhook rejected for its signature.
func (m *Metrics) ObserveSignatureRejected() {
	if m == nil {
		return
	}
	m.webhookRejections.Inc()
}

// ObserveSweep records the outcome for one swept transaction.
func (m *Metrics) ObserveSweep(outcome string) {
	if m == nil {
		return
	}
	m.sweepOutcomes.WithLabelValues(outcome).Inc()
}
