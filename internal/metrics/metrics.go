// Package metrics exposes Prometheus collectors for provider calls, speech
// acquisition and practice sessions.
package metrics

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgnsrekt/engrepeat/internal/speech"
)

const namespace = "engrepeat"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	providerRequests *prometheus.CounterVec
	acquisitions     *prometheus.CounterVec
	sessions         *prometheus.CounterVec
	repeats          prometheus.Counter

	// Histograms
	providerLatency    *prometheus.HistogramVec
	acquisitionLatency prometheus.Histogram

	// Gauges
	activeSessions prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Gemini API calls by operation and status.",
			},
			[]string{"operation", "status"}, // split, lookup, synthesize; success, failed
		),

		acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "speech_acquisitions_total",
				Help:      "Speech acquisitions by outcome.",
			},
			[]string{"outcome"}, // ok, error, empty, timeout
		),

		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "practice_sessions_total",
				Help:      "Finished practice sessions by result.",
			},
			[]string{"result"}, // completed, cancelled, superseded, failed
		),

		repeats: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "practice_repeats_total",
				Help:      "Repeats played to completion.",
			},
		),

		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_seconds",
				Help:      "Gemini API call latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		acquisitionLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "speech_acquisition_seconds",
				Help:      "Speech acquisition latency in seconds.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
			},
		),

		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "practice_active_sessions",
				Help:      "Practice sessions currently running.",
			},
		),
	}

	m.registry.MustRegister(
		m.providerRequests,
		m.acquisitions,
		m.sessions,
		m.repeats,
		m.providerLatency,
		m.acquisitionLatency,
		m.activeSessions,
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one Gemini API call.
func (m *Metrics) ObserveRequest(operation string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.providerRequests.WithLabelValues(operation, status).Inc()
	m.providerLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
	log.Debug("Provider request recorded", "operation", operation, "status", status, "elapsed", elapsed)
}

// ObserveAcquisition records one speech acquisition.
func (m *Metrics) ObserveAcquisition(outcome speech.Outcome, elapsed time.Duration) {
	m.acquisitions.WithLabelValues(string(outcome)).Inc()
	m.acquisitionLatency.Observe(elapsed.Seconds())
}

// SessionStarted records a practice session start.
func (m *Metrics) SessionStarted() {
	m.activeSessions.Inc()
}

// RepeatPlayed records one finished repeat.
func (m *Metrics) RepeatPlayed() {
	m.repeats.Inc()
}

// SessionEnded records how a practice session ended.
func (m *Metrics) SessionEnded(result string) {
	m.activeSessions.Dec()
	m.sessions.WithLabelValues(result).Inc()
}
