package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tourney"

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	registry *prometheus.Registry

	eventsPublished  *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	sessionsActive   *prometheus.GaugeVec
	sessionsEvicted  prometheus.Counter
	controlRejected  *prometheus.CounterVec
	timerExpirations prometheus.Counter
	persistFailures  prometheus.Counter
	pairingLimited   prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	f := promauto.With(registry)
	return &Metrics{
		registry: registry,
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events handed to the broadcast hub, by type.",
		}, []string{"type"}),
		eventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events not delivered, by reason.",
		}, []string{"reason"}),
		sessionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Registered display and controller sessions.",
		}, []string{"role"}),
		sessionsEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed by the stale sweep.",
		}),
		controlRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_rejected_total",
			Help:      "Control operations rejected, by error kind.",
		}, []string{"kind"}),
		timerExpirations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_expirations_total",
			Help:      "Match timers that reached zero.",
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Snapshots the write-behind worker failed to store or archive.",
		}),
		pairingLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairing_rate_limited_total",
			Help:      "Pairing attempts refused by the rate limiter.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventPublished(eventType string) {
	if m != nil {
		m.eventsPublished.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) EventDropped(reason string) {
	if m != nil {
		m.eventsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetSessions(role string, n int) {
	if m != nil {
		m.sessionsActive.WithLabelValues(role).Set(float64(n))
	}
}

func (m *Metrics) SessionsEvicted(n int) {
	if m != nil {
		m.sessionsEvicted.Add(float64(n))
	}
}

func (m *Metrics) ControlRejected(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "internal"
	}
	m.controlRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) TimerExpired() {
	if m != nil {
		m.timerExpirations.Inc()
	}
}

func (m *Metrics) PersistFailed() {
	if m != nil {
		m.persistFailures.Inc()
	}
}

func (m *Metrics) PairingLimited() {
	if m != nil {
		m.pairingLimited.Inc()
	}
}
