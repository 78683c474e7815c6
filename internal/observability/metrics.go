package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rosterSizeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signup_service",
		Subsystem: "registry",
		Name:      "roster_size",
		Help:      "Current number of participants per activity.",
	}, []string{"activity"})

	rosterChangeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signup_service",
		Subsystem: "registry",
		Name:      "last_roster_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent signup or unregister.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, labeled by route and status code.",
	}, []string{"route", "code"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signup_service",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(rosterSizeGauge, rosterChangeGauge, httpRequests, httpDuration)
}

// RecordRosterSize sets the participant gauge for an activity.
func RecordRosterSize(activity string, size int) {
	rosterSizeGauge.WithLabelValues(activity).Set(float64(size))
}

// RecordRosterChange updates the roster change watermark.
func RecordRosterChange(ts time.Time) {
	if ts.IsZero() {
		return
	}
	rosterChangeGauge.Set(float64(ts.Unix()))
}

// RecordRequest counts a served request and observes its latency.
func RecordRequest(route string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, statusLabel(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
