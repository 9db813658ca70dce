package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Fetch pipeline metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	FetchBytes    prometheus.Histogram
	RedirectHops  prometheus.Histogram

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		FetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_fetches_total",
				Help: "Total fetches by terminal outcome ('ok' or an error code)",
			},
			[]string{"outcome"},
		),
		FetchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_fetch_duration_seconds",
				Help:    "End-to-end fetch duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 8, 10, 15},
			},
		),
		FetchBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_fetch_response_bytes",
				Help:    "Size of sanitized fetch responses in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
		),
		RedirectHops: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_fetch_redirect_hops",
				Help:    "Redirect hops per fetch",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records one inbound HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFetch records one terminal fetch outcome.
func (m *Metrics) RecordFetch(outcome string, duration time.Duration, bytes int, hops int) {
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(duration.Seconds())
	if bytes > 0 {
		m.FetchBytes.Observe(float64(bytes))
	}
	m.RedirectHops.Observe(float64(hops))
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
