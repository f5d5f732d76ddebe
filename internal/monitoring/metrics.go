package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Verdict results
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultBot     = "bot"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	RateLimitHits    *prometheus.CounterVec

	// Verdict metrics
	VerdictsTotal *prometheus.CounterVec

	// Challenge metrics
	ChallengesGenerated *prometheus.CounterVec
	ChallengeAnswers    *prometheus.CounterVec
	SequencesCompleted  prometheus.Counter
	SequenceDuration    prometheus.Histogram

	// Hosted session metrics
	SessionsActive prometheus.Gauge
	SessionEvents  *prometheus.CounterVec
	SessionErrors  *prometheus.CounterVec

	// Ambient settings
	SettingsLoads *prometheus.CounterVec

	// Process metrics
	MemoryUsage prometheus.Gauge
	Goroutines  prometheus.Gauge
}

// NewMetricsWithRegistry creates a new metrics instance with custom registry.
// Callers own the registry; nothing is registered on the default one.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formshield_requests_total",
				Help: "Total number of requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formshield_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "formshield_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),
		RateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formshield_rate_limit_hits_total",
				Help: "Total number of throttled requests",
			},
			[]string{"endpoint"},
		),

		VerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formshield_verdicts_total",
				Help: "Total number of submission verdicts",
			},
			[]string{"surface", "result"},
		),

		ChallengesGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formshield_challenges_generated_total",
				Help: "Total number of challenges generated",
			},
			[]string{"type"},
		),
		ChallengeAnswers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formshield_challenge_answers_total",
				Help: "Total number of challenge answers",
			},
			[]string{"result"},
		),
		SequencesCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "formshield_challenge_sequences_completed_total",
				Help: "Total number of completed challenge sequences",
			},
		),
		SequenceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "formshield_challenge_sequence_duration_seconds",
				Help:    "Time spent answering a complete challenge sequence",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "formshield_sessions_active",
				Help: "Number of hosted form sessions",
			},
		),
		SessionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formshield_session_events_total",
				Help: "Total number of hosted session events",
			},
			[]string{"type"},
		),
		SessionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formshield_session_errors_total",
				Help: "Total number of hosted session errors",
			},
			[]string{"type", "error"},
		),

		SettingsLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formshield_settings_loads_total",
				Help: "Total number of ambient settings loads",
			},
			[]string{"source", "result"},
		),

		MemoryUsage: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "formshield_memory_usage_bytes",
				Help: "Current heap allocation in bytes",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "formshield_goroutines",
				Help: "Current number of goroutines",
			},
		),
	}

	registry.MustRegister(
		metrics.RequestsTotal,
		metrics.RequestDuration,
		metrics.RequestsInFlight,
		metrics.RateLimitHits,
		metrics.VerdictsTotal,
		metrics.ChallengesGenerated,
		metrics.ChallengeAnswers,
		metrics.SequencesCompleted,
		metrics.SequenceDuration,
		metrics.SessionsActive,
		metrics.SessionEvents,
		metrics.SessionErrors,
		metrics.SettingsLoads,
		metrics.MemoryUsage,
		metrics.Goroutines,
	)

	return metrics
}

// RecordRequest records a request metric
func (m *Metrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimitHit records a throttled request
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordVerdict records one server verdict on a surface (http, grpc, websocket, cli)
func (m *Metrics) RecordVerdict(surface string, valid, isBot bool) {
	result := ResultValid
	switch {
	case isBot:
		result = ResultBot
	case !valid:
		result = ResultInvalid
	}
	m.VerdictsTotal.WithLabelValues(surface, result).Inc()
}

// RecordChallengeGenerated records a challenge shown to a user
func (m *Metrics) RecordChallengeGenerated(challengeType string) {
	m.ChallengesGenerated.WithLabelValues(challengeType).Inc()
}

// RecordChallengeAnswer records an answer outcome
func (m *Metrics) RecordChallengeAnswer(correct bool) {
	result := "correct"
	if !correct {
		result = "incorrect"
	}
	m.ChallengeAnswers.WithLabelValues(result).Inc()
}

// RecordSequenceCompleted records a completed challenge sequence
func (m *Metrics) RecordSequenceCompleted(total time.Duration) {
	m.SequencesCompleted.Inc()
	m.SequenceDuration.Observe(total.Seconds())
}

// RecordSessionEvent records a hosted session event
func (m *Metrics) RecordSessionEvent(eventType string) {
	m.SessionEvents.WithLabelValues(eventType).Inc()
}

// RecordSessionError records a hosted session error
func (m *Metrics) RecordSessionError(eventType, errorType string) {
	m.SessionErrors.WithLabelValues(eventType, errorType).Inc()
}

// RecordSettingsLoad records an ambient settings read
func (m *Metrics) RecordSettingsLoad(source string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.SettingsLoads.WithLabelValues(source, result).Inc()
}

// SetMemoryUsage sets memory usage
func (m *Metrics) SetMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// SetGoroutines sets the goroutine count
func (m *Metrics) SetGoroutines(count int) {
	m.Goroutines.Set(float64(count))
}
