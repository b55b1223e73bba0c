package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// PaymentMetrics captures checkout and webhook health signals.
type PaymentMetrics struct {
	SessionsCreated *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec

	// EffectFailures counts ledger writes that failed after a gateway
	// confirmed success. Money moved but the ledger did not record it;
	// every increment is an operational alert.
	EffectFailures prometheus.Counter
}

const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeUnknown   = "unknown_order"
	WebhookOutcomeError     = "error"
)

var Module = fx.Module("observability.metrics",
	fx.Provide(func() *PaymentMetrics {
		return NewPaymentMetrics(prometheus.DefaultRegisterer)
	}),
)

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		SessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanstage_payment_sessions_created_total",
			Help: "Checkout sessions created, by gateway and session type.",
		}, []string{"gateway", "type"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanstage_payment_webhook_events_total",
			Help: "Webhook deliveries, by gateway and processing outcome.",
		}, []string{"gateway", "outcome"}),
		EffectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fanstage_payment_effect_failures_total",
			Help: "Ledger effects that failed after the gateway confirmed success.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.SessionsCreated, m.WebhookEvents, m.EffectFailures)
	}
	return m
}
