// Package metrics holds the prometheus collectors shared by the API and the
// alarm daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PollCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alarmwatch_poll_cycles_total",
		Help: "Polling cycles by outcome (ok, bad_status, error)",
	}, []string{"outcome"})

	AlarmsDue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alarmwatch_alarms_due",
		Help: "Alarms found due in the last polling cycle",
	})

	NotificationsShown = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alarmwatch_notifications_shown_total",
		Help: "Notifications displayed for due alarms",
	})

	PermissionRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alarmwatch_permission_requests_total",
		Help: "Notification permission requests by answer",
	}, []string{"answer"})

	SoundsPlaying = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alarmwatch_sounds_playing",
		Help: "Looping sounds currently registered",
	})

	ReactorEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alarmwatch_reactor_events_total",
		Help: "Lifecycle, push and click events handled by the reactor",
	}, []string{"event"})

	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alarmwatch_api_requests_total",
		Help: "Alarm API requests by route and status class",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(
		PollCycles, AlarmsDue, NotificationsShown, PermissionRequests,
		SoundsPlaying, ReactorEvents, APIRequests,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
