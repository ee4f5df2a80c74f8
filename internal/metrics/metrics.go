// Package metrics exposes Prometheus instrumentation for the alert monitor:
// poll outcomes as counters, notification attempts as counters, and the
// current store contents as gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollsTotal counts completed alert polls by outcome (success, failure, stale).
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_polls_total",
		Help: "Completed alert polls by outcome.",
	}, []string{"outcome"})

	// SettingsPollsTotal counts settings refreshes by outcome.
	SettingsPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_polls_total",
		Help: "Completed settings polls by outcome.",
	}, []string{"outcome"})

	// NotificationsTotal counts audible notification attempts by result
	// (played, fallback, silent, failed).
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_notifications_total",
		Help: "Audible notification attempts by result.",
	}, []string{"result"})

	// EscalationsTotal counts reminder-threshold escalations by outcome.
	EscalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_escalations_total",
		Help: "Reminder escalations dispatched by outcome.",
	}, []string{"outcome"})

	// AlertsActive is the number of alerts currently held in the store.
	AlertsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alerts_active",
		Help: "Alerts currently held in the store.",
	})

	// AlertsUnread is the store's unread (non-dismissed) count.
	AlertsUnread = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alerts_unread",
		Help: "Non-dismissed alerts in the store.",
	})

	// PollLatency observes alert poll round-trip time.
	PollLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alert_poll_latency_seconds",
		Help:    "Alert poll round-trip latency.",
		Buckets: prometheus.DefBuckets,
	})
)
