// Package metrics exposes Prometheus instrumentation for the transcription
// pipeline and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the service registers. All record
// methods are safe on a nil receiver so callers that run without
// instrumentation (the CLI, most tests) can simply pass nil.
type Metrics struct {
	// Job metrics
	JobsStarted   prometheus.Counter
	JobsCompleted *prometheus.CounterVec
	JobsFailed    prometheus.Counter
	JobDuration   prometheus.Histogram

	// Chunk metrics
	ChunksTranscribed prometheus.Counter
	ChunksFailed      prometheus.Counter
	ChunkDuration     prometheus.Histogram
	Fallbacks         prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on reg. A nil reg registers on the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	auto := promauto.With(reg)

	return &Metrics{
		JobsStarted: auto.NewCounter(prometheus.CounterOpts{
			Name: "vegvisr_jobs_started_total",
			Help: "Total number of transcription jobs accepted",
		}),
		JobsCompleted: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "vegvisr_jobs_completed_total",
			Help: "Total number of transcription jobs finished, by mode",
		}, []string{"mode"}),
		JobsFailed: auto.NewCounter(prometheus.CounterOpts{
			Name: "vegvisr_jobs_failed_total",
			Help: "Total number of transcription jobs that produced no transcript",
		}),
		JobDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vegvisr_job_duration_seconds",
			Help:    "Wall-clock duration of transcription jobs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		ChunksTranscribed: auto.NewCounter(prometheus.CounterOpts{
			Name: "vegvisr_chunks_transcribed_total",
			Help: "Total number of audio chunks transcribed successfully",
		}),
		ChunksFailed: auto.NewCounter(prometheus.CounterOpts{
			Name: "vegvisr_chunks_failed_total",
			Help: "Total number of audio chunks whose transcription failed",
		}),
		ChunkDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vegvisr_chunk_request_duration_seconds",
			Help:    "Duration of per-chunk transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		Fallbacks: auto.NewCounter(prometheus.CounterOpts{
			Name: "vegvisr_single_shot_fallbacks_total",
			Help: "Total number of jobs that fell back to a single request after chunking failed",
		}),

		HTTPRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "vegvisr_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vegvisr_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// RecordJobStarted increments the jobs started counter.
func (m *Metrics) RecordJobStarted() {
	if m == nil {
		return
	}
	m.JobsStarted.Inc()
}

// RecordJobCompleted records a finished job and its wall-clock duration.
func (m *Metrics) RecordJobCompleted(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.JobsCompleted.WithLabelValues(mode).Inc()
	m.JobDuration.Observe(seconds)
}

// RecordJobFailed increments the jobs failed counter.
func (m *Metrics) RecordJobFailed() {
	if m == nil {
		return
	}
	m.JobsFailed.Inc()
}

// RecordChunkTranscribed records a successful chunk request.
func (m *Metrics) RecordChunkTranscribed(seconds float64) {
	if m == nil {
		return
	}
	m.ChunksTranscribed.Inc()
	m.ChunkDuration.Observe(seconds)
}

// RecordChunkFailed records a failed chunk request.
func (m *Metrics) RecordChunkFailed(seconds float64) {
	if m == nil {
		return
	}
	m.ChunksFailed.Inc()
	m.ChunkDuration.Observe(seconds)
}

// RecordFallback increments the single-shot fallback counter.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

// RecordHTTPRequest records one handled HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
