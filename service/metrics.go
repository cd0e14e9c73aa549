package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for room services. A nil *Metrics
// records nothing.
type Metrics struct {
	broadcasts        *prometheus.CounterVec
	unicasts          *prometheus.CounterVec
	roomConnections   *prometheus.CounterVec
	proxyCalls        *prometheus.CounterVec
	proxyCallDuration *prometheus.HistogramVec
}

// NewMetrics registers the service collectors on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomsync",
			Name:      "broadcasts_total",
			Help:      "Room broadcasts emitted by room services",
		}, []string{"service"}),

		unicasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomsync",
			Name:      "unicasts_total",
			Help:      "Single-connection emits by room services, including join replays",
		}, []string{"service"}),

		roomConnections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomsync",
			Name:      "room_connections_total",
			Help:      "Connections joined to room service instances",
		}, []string{"service"}),

		proxyCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomsync",
			Name:      "proxy_calls_total",
			Help:      "Proxy calls handled, by outcome",
		}, []string{"service", "method", "status"}),

		proxyCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roomsync",
			Name:      "proxy_call_duration_seconds",
			Help:      "Time from proxy call receipt to acknowledgement",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
	}
}

func (m *Metrics) broadcast(service string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(service).Inc()
}

func (m *Metrics) unicast(service string) {
	if m == nil {
		return
	}
	m.unicasts.WithLabelValues(service).Inc()
}

func (m *Metrics) roomConnection(service string) {
	if m == nil {
		return
	}
	m.roomConnections.WithLabelValues(service).Inc()
}

func (m *Metrics) proxyCall(service, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.proxyCalls.WithLabelValues(service, method, status).Inc()
	m.proxyCallDuration.WithLabelValues(service, method).Observe(d.Seconds())
}
