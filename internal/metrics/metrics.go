package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics aggregates the reconciliation engine's counters. A nil *Metrics is
// safe to use everywhere; recording on it is a no-op.
type Metrics struct {
	transitions     *prometheus.CounterVec
	materialization *prometheus.CounterVec
	commands        *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookpay_session_transitions_total",
			Help: "Session status transition attempts by target and outcome.",
		}, []string{"target", "result"}),
		materialization: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookpay_orders_materialized_total",
			Help: "Order materialization calls by outcome.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookpay_verification_commands_total",
			Help: "Verification channel commands by verb and outcome.",
		}, []string{"verb", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookpay_notifications_total",
			Help: "Admin notifications by event and outcome.",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(m.transitions, m.materialization, m.commands, m.notifications)
	return m
}

func (m *Metrics) RecordTransition(target, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target, result).Inc()
}

func (m *Metrics) RecordMaterialization(result string) {
	if m == nil {
		return
	}
	m.materialization.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCommand(verb, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb, result).Inc()
}

func (m *Metrics) RecordNotification(event, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, result).Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(
		func() *prometheus.Registry { return prometheus.NewRegistry() },
		func(reg *prometheus.Registry) prometheus.Registerer { return reg },
		New,
	),
)
