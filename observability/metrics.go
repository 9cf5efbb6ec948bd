package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the prometheus collectors of the presence core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	activeConnections prometheus.Gauge
	totalConnections  prometheus.Counter
	rejected          *prometheus.CounterVec
	onlineIdentities  prometheus.Gauge
	broadcasts        *prometheus.CounterVec
	relayed           prometheus.Counter
	deliveryFailures  *prometheus.CounterVec
	credentialRenewed prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "The current number of registered websocket connections.",
		}),
		totalConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_connections_total",
			Help: "The total number of websocket connections registered.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_connections_rejected_total",
			Help: "Connections refused during the handshake, by reason.",
		}, []string{"reason"}),
		onlineIdentities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_online_identities",
			Help: "The number of distinct identities with at least one live connection.",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_broadcasts_total",
			Help: "Presence broadcasts sent, by transition.",
		}, []string{"online"}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_relayed_total",
			Help: "Messages pushed to a live recipient connection.",
		}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_failures_total",
			Help: "Best-effort pushes that a connection refused, by event.",
		}, []string{"event"}),
		credentialRenewed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credentials_renewed_total",
			Help: "Credentials transparently reissued near expiry.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.activeConnections, m.totalConnections, m.rejected, m.onlineIdentities,
		m.broadcasts, m.relayed, m.deliveryFailures, m.credentialRenewed,
	)
	return m
}

// Handler exposes the collectors in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer is the registry holding every collector of m.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
	m.totalConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) ConnectionRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) PresenceBroadcast(online bool, onlineCount int) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(strconv.FormatBool(online)).Inc()
	m.onlineIdentities.Set(float64(onlineCount))
}

func (m *Metrics) OnlineIdentities(count int) {
	if m == nil {
		return
	}
	m.onlineIdentities.Set(float64(count))
}

func (m *Metrics) MessageRelayed(delivered int) {
	if m == nil {
		return
	}
	m.relayed.Add(float64(delivered))
}

func (m *Metrics) DeliveryFailed(event string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(event).Inc()
}

func (m *Metrics) CredentialRenewed() {
	if m == nil {
		return
	}
	m.credentialRenewed.Inc()
}
