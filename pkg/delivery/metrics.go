package delivery

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks delivery attempt outcomes. Every attempt records the tuple
// {intent_class, attempt, outcome} plus its duration.
type Metrics struct {
	// AttemptCounter counts delivery attempts.
	// Labels: intent_class, attempt (1..max_attempts), outcome
	// (success|retryable_failure|terminal_failure)
	AttemptCounter *prometheus.CounterVec

	// AttemptDuration measures delivery POST latency in seconds.
	// Labels: intent_class, outcome
	AttemptDuration *prometheus.HistogramVec

	// DeadLetterCounter counts jobs routed to the dead letter.
	// Labels: intent_class, reason
	DeadLetterCounter *prometheus.CounterVec
}

// NewMetrics creates and registers the delivery metrics on the given
// registerer. Call once per registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AttemptCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_delivery_attempts_total",
				Help: "Total delivery attempts by intent class, attempt number, and outcome",
			},
			[]string{"intent_class", "attempt", "outcome"},
		),
		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_delivery_attempt_duration_seconds",
				Help:    "Duration of delivery POST attempts in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"intent_class", "outcome"},
		),
		DeadLetterCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_delivery_dead_letters_total",
				Help: "Total delivery jobs routed to the dead letter by intent class and reason",
			},
			[]string{"intent_class", "reason"},
		),
	}
}

// RecordAttempt records one delivery attempt.
func (m *Metrics) RecordAttempt(intentClass string, attempt int, outcome string, duration time.Duration) {
	m.AttemptCounter.WithLabelValues(intentClass, strconv.Itoa(attempt), outcome).Inc()
	m.AttemptDuration.WithLabelValues(intentClass, outcome).Observe(duration.Seconds())
}

// RecordDeadLetter records a job reaching the dead letter.
func (m *Metrics) RecordDeadLetter(intentClass, reason string) {
	m.DeadLetterCounter.WithLabelValues(intentClass, reason).Inc()
}
