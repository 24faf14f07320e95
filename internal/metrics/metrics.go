// Package metrics exposes Prometheus collectors for the runwatch service.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	viewStreamsActive          prometheus.Gauge
	viewMode                   *prometheus.GaugeVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)

		viewStreamsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "runwatch_view_streams_active",
				Help: "Number of connected view stream clients.",
			},
		)

		viewMode = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "runwatch_view_mode",
				Help: "1 for the mode currently displayed (none, run, sweep), 0 otherwise.",
			},
			[]string{"mode"},
		)
	})
}

var knownModes = []string{"none", "run", "sweep"}

// MethodLabel bounds the method label to standard HTTP verbs.
func MethodLabel(method string) string {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return m
	default:
		return "OTHER"
	}
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	method = MethodLabel(method)
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncViewStreams records a connected view stream client.
func IncViewStreams() {
	viewStreamsActive.Inc()
}

// DecViewStreams records a disconnected view stream client.
func DecViewStreams() {
	viewStreamsActive.Dec()
}

// SetViewMode marks mode as the displayed mode.
func SetViewMode(mode string) {
	for _, m := range knownModes {
		v := 0.0
		if m == mode {
			v = 1
		}
		viewMode.WithLabelValues(m).Set(v)
	}
}

// HubStats is the read side of the notification hub's counters.
type HubStats interface {
	Dropped() int64
	Delivered() int64
}

// RegisterHubStats exposes hub counters as Prometheus counter funcs.
func RegisterHubStats(reg prometheus.Registerer, stats HubStats) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "runwatch_notifications_dropped_total",
			Help: "Notifications discarded because the hub buffer was full.",
		}, func() float64 { return float64(stats.Dropped()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "runwatch_notifications_delivered_total",
			Help: "Notifications handed to sinks.",
		}, func() float64 { return float64(stats.Delivered()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register hub collector: %w", err)
		}
	}
	return nil
}
