// Package metrics exposes Prometheus instrumentation for the transcription
// pipeline and its HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus collectors used by moji. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registerer prometheus.Registerer

	// Pipeline metrics
	Transcriptions    *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	CleanupFailures   prometheus.Counter
	InFlight          prometheus.Gauge
	NormalizedSeconds prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	UploadBytes         prometheus.Histogram
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registerer: reg,

		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moji_transcriptions_total",
			Help: "Transcription requests by outcome (success or the stage that failed)",
		}, []string{"outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moji_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "moji_cleanup_failures_total",
			Help: "Normalized scratch files that could not be removed",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "moji_transcriptions_in_flight",
			Help: "Transcriptions currently running",
		}),
		NormalizedSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "moji_audio_duration_seconds",
			Help:    "Duration of normalized audio handed to the inference engine",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moji_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moji_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		UploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "moji_upload_bytes",
			Help:    "Size of uploaded audio files",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		}),
	}
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCleanupFailure() {
	if m == nil {
		return
	}
	m.CleanupFailures.Inc()
}

func (m *Metrics) ObserveAudioDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.NormalizedSeconds.Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.UploadBytes.Observe(float64(size))
}

// WatchModelState exports one gauge per model lifecycle state; the gauge for
// the current state reads 1, all others 0.
func (m *Metrics) WatchModelState(states []string, current func() string) {
	if m == nil {
		return
	}
	factory := promauto.With(m.registerer)
	for _, state := range states {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "moji_model_state",
			Help:        "Inference model lifecycle state",
			ConstLabels: prometheus.Labels{"state": state},
		}, func() float64 {
			if current() == state {
				return 1
			}
			return 0
		})
	}
}
