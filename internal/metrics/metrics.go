// Package metrics holds the Prometheus collectors for the relay and the
// handler that exposes them at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomrelay"

// Drop reasons used as the "reason" label of EventsDropped.
const (
	ReasonInvalidJoin  = "invalid_join"
	ReasonNotMember    = "not_member"
	ReasonUnknownEvent = "unknown_event"
	ReasonMalformed    = "malformed"
	ReasonUnknownConn  = "unknown_connection"
)

// Metrics groups the relay collectors. Each instance owns its registry so
// tests can create as many as they like without duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	Connections      prometheus.Gauge
	Rooms            prometheus.Gauge
	EventsReceived   *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	Deliveries       prometheus.Counter
	DeliveryFailures prometheus.Counter
}

// New creates the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of registered client connections.",
		}),
		Rooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of rooms with at least one member.",
		}),
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound client events accepted by the router, by event name.",
		}, []string{"event"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Inbound client events dropped by the router, by reason.",
		}, []string{"reason"}),
		Deliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Frames queued to recipients during room fan-out.",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_failed_total",
			Help:      "Per-recipient send failures during room fan-out.",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
