// Package metrics holds the prometheus collectors of the realtime layer.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venue"

// Drop reasons.
const (
	ReasonRateLimited  = "rate_limited"
	ReasonChatLength   = "chat_length"
	ReasonBackpressure = "backpressure"
)

type Metrics struct {
	Broadcasts  *prometheus.CounterVec
	Deliveries  *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Rooms       prometheus.Gauge
	Connections prometheus.Gauge
}

// New creates the collectors and registers them on reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "broadcasts_total",
			Help:      "Envelopes fanned out to a room, by event.",
		}, []string{"event"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Envelopes delivered to individual connections, by event.",
		}, []string{"event"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "dropped_total",
			Help:      "Outbound calls dropped before reaching a room, by layer and reason.",
		}, []string{"layer", "reason"}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "rooms",
			Help:      "Rooms known to the broker, empty ones included.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "active_connections",
			Help:      "Connected providers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Broadcasts, m.Deliveries, m.Dropped, m.Rooms, m.Connections)
	}
	return m
}

func (m *Metrics) Broadcast(event string, deliveries int) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(event).Inc()
	m.Deliveries.WithLabelValues(event).Add(float64(deliveries))
}

func (m *Metrics) Drop(layer, reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(layer, reason).Inc()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(n))
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(n))
}
