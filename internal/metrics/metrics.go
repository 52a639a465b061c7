package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check-in outcomes.
const (
	CheckInRegistered = "registered"
	CheckInDuplicate  = "duplicate"
	CheckInNotFound   = "not_found"
	CheckInNoCard     = "no_card"
	CheckInError      = "error"
)

// Metrics holds the collectors exported by the API server.
type Metrics struct {
	gatherer        prometheus.Gatherer
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	checkIns        *prometheus.CounterVec
	historyRepairs  prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg)
	m.gatherer = reg
	return m
}

// NewWithRegisterer registers the collectors on reg. A nil reg yields no-op metrics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	checkIns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_checkins_total",
		Help: "Attendance check-ins by outcome.",
	}, []string{"outcome"})
	historyRepairs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_history_repairs_total",
		Help: "History rows backfilled by the worker.",
	})
	reg.MustRegister(requests, requestDuration, checkIns, historyRepairs)
	return &Metrics{
		requests:        requests,
		requestDuration: requestDuration,
		checkIns:        checkIns,
		historyRepairs:  historyRepairs,
	}
}

// ObserveCheckIn counts a check-in attempt by outcome.
func (m *Metrics) ObserveCheckIn(outcome string) {
	if m == nil || m.checkIns == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.checkIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncHistoryRepair() {
	if m == nil || m.historyRepairs == nil {
		return
	}
	m.historyRepairs.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.requests == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
