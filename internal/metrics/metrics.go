// Package metrics exposes Prometheus collectors for the capture pipeline.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for fetch attempts.
const (
	OutcomeSuccess     = "success"
	OutcomeHTTPError   = "http_error"
	OutcomeNetworkErr  = "network_error"
	OutcomeRobotsBlock = "robots_denied"
)

var (
	registry *prometheus.Registry

	fetchAttemptsTotal         *prometheus.CounterVec
	fetchRetriesTotal          *prometheus.CounterVec
	robotsDeniedTotal          *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	capturesTotal              *prometheus.CounterVec
	assetsTotal                *prometheus.CounterVec
	structuredDataErrorsTotal  prometheus.Counter
	capturePhaseDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		factory := promauto.With(registry)

		fetchAttemptsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_attempts_total",
				Help: "Total number of HTTP attempts, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		fetchRetriesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_retries_total",
				Help: "Total number of retried HTTP attempts, labeled by host.",
			},
			[]string{"host"},
		)

		robotsDeniedTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_robots_denied_total",
				Help: "Total number of URLs skipped because robots.txt disallows them.",
			},
			[]string{"host"},
		)

		rateLimitDelaysSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_rate_limit_delays_seconds",
				Help:    "Histogram of politeness wait durations.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		capturesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_captures_total",
				Help: "Total number of targets merged into the dataset, labeled by status.",
			},
			[]string{"status"},
		)

		assetsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_assets_total",
				Help: "Total number of cover downloads, labeled by status.",
			},
			[]string{"status"},
		)

		structuredDataErrorsTotal = factory.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_structured_data_errors_total",
				Help: "Total number of malformed JSON-LD blocks skipped.",
			},
		)

		capturePhaseDurationSecond = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_capture_phase_duration_seconds",
				Help:    "Histogram of capture phase latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"phase"},
		)
	})
}

// Registry returns the registry holding every catalog collector.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetchAttempt counts one HTTP attempt.
func ObserveFetchAttempt(rawURL, outcome string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(SanitizeHost(rawURL), outcome).Inc()
}

// ObserveRetry counts a retried attempt.
func ObserveRetry(rawURL string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SanitizeHost(rawURL)).Inc()
}

// ObserveRobotsDenied counts a URL blocked by robots.txt.
func ObserveRobotsDenied(rawURL string) {
	Init()
	robotsDeniedTotal.WithLabelValues(SanitizeHost(rawURL)).Inc()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveCapture increments the capture counter for the given status.
func ObserveCapture(status string) {
	Init()
	capturesTotal.WithLabelValues(status).Inc()
}

// ObserveAsset increments the asset counter for the given status.
func ObserveAsset(status string) {
	Init()
	assetsTotal.WithLabelValues(status).Inc()
}

// ObserveStructuredDataError counts a skipped JSON-LD block.
func ObserveStructuredDataError() {
	Init()
	structuredDataErrorsTotal.Inc()
}

// ObservePhase records how long a capture phase took.
func ObservePhase(phase string, duration time.Duration) {
	Init()
	capturePhaseDurationSecond.WithLabelValues(phase).Observe(duration.Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
