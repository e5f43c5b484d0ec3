package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "staybook", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staybook", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "staybook", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staybook", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "staybook", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|error
	)
	Admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "staybook", Name: "booking_admissions_total", Help: "Booking admission decisions."},
		[]string{"op", "outcome"}, // outcome: admitted|unavailable|pending_payment|not_found|forbidden|duplicate_cancellation|invalid|error
	)
	SweptBookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "staybook", Name: "sweep_bookings_total", Help: "Bookings processed by the expiration sweep."},
		[]string{"result"}, // result: expired|failed
	)
	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "staybook", Name: "sweep_runs_total", Help: "Expiration sweep runs."},
		[]string{"outcome"}, // outcome: ok|partial|empty|skipped|canceled|error
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "staybook", Name: "notifications_total", Help: "Notification dispatch attempts."},
		[]string{"kind", "status"},
	)
)

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		Admissions, SweptBookings, SweepRuns, Notifications)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del|error
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveAdmission(op, outcome string) { Admissions.WithLabelValues(op, outcome).Inc() }

func ObserveSweptBooking(result string) { SweptBookings.WithLabelValues(result).Inc() }

func ObserveSweepRun(outcome string) { SweepRuns.WithLabelValues(outcome).Inc() }

func ObserveNotification(kind, status string) { Notifications.WithLabelValues(kind, status).Inc() }
