package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TracksStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "basemusic_tracks_started_total", Help: "Tracks loaded by the player"},
	)
	ListenSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "basemusic_listen_seconds_total", Help: "Seconds of listening flushed into history"},
	)
	Flushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "basemusic_flushes_total", Help: "Play time flushes by trigger"},
		[]string{"reason"},
	)
	PointsAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "basemusic_points_awarded_total", Help: "Points gained across all wallets"},
	)
	ProbeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "basemusic_probe_failures_total", Help: "Audio probes that failed or timed out"},
	)
	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basemusic_probe_duration_seconds",
			Help:    "Time spent probing one audio file",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "basemusic_http_requests_total", Help: "HTTP requests by route and status"},
		[]string{"method", "route", "code"},
	)
	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "basemusic_ws_clients", Help: "Connected player websocket clients"},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers the collectors with the default registry. Safe to
// call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TracksStarted, ListenSeconds, Flushes, PointsAwarded,
			ProbeFailures, ProbeDuration, HTTPRequests, WSClients,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
