package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the monitor's Prometheus instruments. A nil *Metrics is
// safe to use everywhere and records nothing, so tests and metric-less
// deployments skip registration entirely.
type Metrics struct {
	eventsTotal      *prometheus.CounterVec
	eventsRejected   prometheus.Counter
	alertsTriggered  *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	channelSends     *prometheus.CounterVec
	storedEvents     prometheus.Gauge
}

// New registers the watchtower instruments on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "watchtower_events_total",
			Help: "Security events recorded, by event type.",
		}, []string{"event_type"}),
		eventsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchtower_events_rejected_total",
			Help: "Events rejected at the ingestion boundary.",
		}),
		alertsTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "watchtower_alerts_triggered_total",
			Help: "Alerts produced by pattern evaluation, by pattern.",
		}, []string{"pattern"}),
		alertsSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "watchtower_alerts_suppressed_total",
			Help: "Alerts suppressed by the cooldown deduplicator, by pattern.",
		}, []string{"pattern"}),
		channelSends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "watchtower_channel_sends_total",
			Help: "Channel delivery attempts, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		storedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "watchtower_store_events",
			Help: "Events currently retained in the correlation store.",
		}),
	}
}

// IncEvent counts one recorded event.
func (m *Metrics) IncEvent(eventType string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType).Inc()
}

// IncRejected counts one rejected event.
func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.eventsRejected.Inc()
}

// IncTriggered counts one triggered alert.
func (m *Metrics) IncTriggered(pattern string) {
	if m == nil {
		return
	}
	m.alertsTriggered.WithLabelValues(pattern).Inc()
}

// IncSuppressed counts one deduplicated alert.
func (m *Metrics) IncSuppressed(pattern string) {
	if m == nil {
		return
	}
	m.alertsSuppressed.WithLabelValues(pattern).Inc()
}

// IncChannelSend counts one delivery attempt.
func (m *Metrics) IncChannelSend(channel string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.channelSends.WithLabelValues(channel, outcome).Inc()
}

// SetStoredEvents records the store's current size.
func (m *Metrics) SetStoredEvents(n int) {
	if m == nil {
		return
	}
	m.storedEvents.Set(float64(n))
}
