package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_summarizer_active_runs",
		Help: "Number of pipeline runs in progress",
	})

	totalRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_summarizer_runs_total",
		Help: "Total number of pipeline runs by outcome",
	}, []string{"outcome"}) // outcome: "success", "partial", "degraded", "empty", "failed", "cancelled"

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_summarizer_run_duration_seconds",
		Help:    "Duration of pipeline runs in seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// Transcription metrics
	chunkRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_summarizer_chunk_requests_total",
		Help: "Total number of chunk transcription requests",
	}, []string{"status"})

	chunkLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_summarizer_chunk_latency_seconds",
		Help:    "Chunk transcription latency in seconds",
		Buckets: []float64{0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_summarizer_retries_total",
		Help: "Total number of retried collaborator calls",
	}, []string{"stage"})

	// Summarization metrics
	summarizeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_summarizer_summarize_requests_total",
		Help: "Total number of summarization requests",
	}, []string{"status"})

	summarizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_summarizer_summarize_latency_seconds",
		Help:    "Summarization latency in seconds",
		Buckets: []float64{1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 180.0},
	})

	truncatedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_summarizer_truncated_requests_total",
		Help: "Total number of summarization requests truncated to the token budget",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_summarizer_errors_total",
		Help: "Total number of errors",
	}, []string{"kind", "stage"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meeting_summarizer_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_summarizer_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_summarizer_audio_bytes_total",
		Help: "Total PCM audio bytes submitted for transcription",
	})
)

// Metrics tracks metrics for a single pipeline run
type Metrics struct {
	runID              string
	startTime          time.Time
	summarizeStartTime time.Time
	mu                 sync.Mutex
}

// NewRunMetrics creates a new metrics tracker for a run
func NewRunMetrics(runID string) *Metrics {
	return &Metrics{
		runID:     runID,
		startTime: time.Now(),
	}
}

// RunID returns the run the tracker belongs to
func (m *Metrics) RunID() string { return m.runID }

// RecordRunStart records the start of a run
func (m *Metrics) RecordRunStart() {
	activeRuns.Inc()
}

// RecordRunEnd records the end of a run
func (m *Metrics) RecordRunEnd(outcome string) {
	activeRuns.Dec()
	totalRuns.WithLabelValues(outcome).Inc()
	runDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordSummarizeStart records the start of the summarization call
func (m *Metrics) RecordSummarizeStart() {
	m.mu.Lock()
	m.summarizeStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSummarizeEnd records the end of the summarization call
func (m *Metrics) RecordSummarizeEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.summarizeStartTime.IsZero() {
		latency := time.Since(m.summarizeStartTime).Seconds()
		summarizeLatency.Observe(latency)
	}

	status := "success"
	if !success {
		status = "error"
	}
	summarizeRequests.WithLabelValues(status).Inc()
}

// RecordTruncated records a transcript cut down to the token budget
func (m *Metrics) RecordTruncated() {
	truncatedRequests.Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(kind, stage string) {
	errorsTotal.WithLabelValues(kind, stage).Inc()
}

// RecordChunkRequest records one finished chunk with its final status
// ("success", "failed", "aborted") and the time spent on it
func RecordChunkRequest(status string, latency time.Duration) {
	chunkRequests.WithLabelValues(status).Inc()
	chunkLatency.Observe(latency.Seconds())
}

// RecordRetry records a retried collaborator call
func RecordRetry(stage string) {
	retriesTotal.WithLabelValues(stage).Inc()
}

// RecordAudioBytes records audio bytes submitted for transcription
func RecordAudioBytes(bytes int64) {
	audioBytesProcessed.Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
