package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServiceName labels logs and health responses.
const ServiceName = "interpreter-gateway"

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interpreter_gateway_active_sessions",
		Help: "Number of connected interpreter sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interpreter_gateway_sessions_total",
		Help: "Total number of interpreter sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interpreter_gateway_session_duration_seconds",
		Help:    "Duration of interpreter sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	// Capture metrics
	captures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_gateway_captures_total",
		Help: "Total number of push-to-talk capture sessions",
	}, []string{"status"})

	// Translation metrics
	translations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_gateway_translations_total",
		Help: "Total number of translation requests by outcome",
	}, []string{"status"})

	translationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interpreter_gateway_translation_latency_seconds",
		Help:    "Translation backend latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0},
	})

	// Playback metrics
	playbackRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_gateway_playback_requests_total",
		Help: "Total number of playback requests by outcome",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interpreter_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interpreter_gateway_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// Metrics tracks metrics for a single interpreter session.
// A nil *Metrics records nothing.
type Metrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	if m == nil {
		return
	}
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordCapture records a capture attempt: "started", "unavailable" or "error".
func (m *Metrics) RecordCapture(status string) {
	if m == nil {
		return
	}
	captures.WithLabelValues(status).Inc()
}

// RecordTranslation records a translation outcome: "success", "error" or "superseded".
func (m *Metrics) RecordTranslation(status string, latency time.Duration) {
	if m == nil {
		return
	}
	translations.WithLabelValues(status).Inc()
	translationLatency.Observe(latency.Seconds())
}

// RecordPlayback records a playback outcome.
func (m *Metrics) RecordPlayback(status string) {
	if m == nil {
		return
	}
	playbackRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	if m == nil {
		return
	}
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
