package service

import (
	"net/http"

	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/plgd-dev/device-bridge/device-bridge/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "devicebridge"

const (
	mutationCreate = "create"
	mutationDelete = "delete"
)

// Metrics counts dispatch results and subscription mutations.
type Metrics struct {
	registry  *prometheus.Registry
	dispatch  *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dispatch_total",
				Help:      "Total dispatched events by event type and result.",
			},
			[]string{"event_type", "result"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "subscription_mutations_total",
				Help:      "Total subscription mutations by subscription type and operation.",
			},
			[]string{"subscription_type", "operation"},
		),
	}
	m.registry.MustRegister(
		m.dispatch,
		m.mutations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) observeDispatch(eventType events.EventType, result Result) {
	m.dispatch.WithLabelValues(string(eventType), string(result)).Inc()
}

func (m *Metrics) observeMutation(typ store.SubscriptionType, operation string) {
	m.mutations.WithLabelValues(string(typ), operation).Inc()
}

// Handler exposes the metrics in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
