package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records settlement and reconciliation pipeline counters.
type PipelineMetrics struct {
	webhookEvents    *prometheus.CounterVec
	resolverFallback prometheus.Counter
	settlements      *prometheus.CounterVec
	gatewayRetries   *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processed gateway webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	resolverFallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_resolver_fallback_total",
		Help: "Reverse-index lookups taken because account metadata was missing.",
	})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Settlement finalizations by outcome.",
	}, []string{"outcome"})
	gatewayRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Retried gateway calls by operation.",
	}, []string{"operation"})
	reg.MustRegister(webhookEvents, resolverFallback, settlements, gatewayRetries)
	return &PipelineMetrics{
		webhookEvents:    webhookEvents,
		resolverFallback: resolverFallback,
		settlements:      settlements,
		gatewayRetries:   gatewayRetries,
	}
}

// IncWebhookEvent counts one processed webhook delivery.
func (m *PipelineMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncResolverFallback counts one reverse-index identity lookup.
func (m *PipelineMetrics) IncResolverFallback() {
	if m == nil || m.resolverFallback == nil {
		return
	}
	m.resolverFallback.Inc()
}

// IncSettlement counts one finalization attempt outcome.
func (m *PipelineMetrics) IncSettlement(outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncGatewayRetry counts one retried gateway call.
func (m *PipelineMetrics) IncGatewayRetry(operation string) {
	if m == nil || m.gatewayRetries == nil {
		return
	}
	m.gatewayRetries.WithLabelValues(normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
