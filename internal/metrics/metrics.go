// Package metrics exposes Prometheus collectors for the fetch pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchpipe_fetch_attempts_total",
			Help: "Total number of HTTP attempts, labeled by attempt outcome.",
		},
		[]string{"outcome"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchpipe_fetches_total",
			Help: "Total number of URLs fetched, labeled by site and final status.",
		},
		[]string{"site", "status"},
	)

	fetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchpipe_content_bytes_total",
			Help: "Total number of decoded content bytes, labeled by site.",
		},
		[]string{"site"},
	)

	backoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetchpipe_backoff_seconds",
			Help:    "Histogram of backoff delays scheduled between attempts.",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 30},
		},
	)

	recordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchpipe_records_written_total",
			Help: "Total number of output lines written, labeled by record kind.",
		},
		[]string{"kind"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetchpipe_active_workers",
			Help: "Number of workers currently running.",
		},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetchpipe_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetchpipe_http_request_duration_seconds",
			Help:    "Latency of requests served by the status API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAttempt counts one HTTP attempt by outcome (success, retryable, permanent).
func ObserveAttempt(outcome string) {
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records the final status of one URL.
func ObserveFetch(rawURL string, status string, contentBytes int) {
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, status).Inc()
	if contentBytes > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(contentBytes))
	}
}

// ObserveBackoff records a scheduled backoff delay.
func ObserveBackoff(delay time.Duration) {
	backoffSeconds.Observe(delay.Seconds())
}

// ObserveRecordWritten counts one line written to the sink.
func ObserveRecordWritten(kind string) {
	recordsWrittenTotal.WithLabelValues(kind).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one request served by the status API.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(duration.Seconds())
}
