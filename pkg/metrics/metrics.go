package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MailSyncedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_synced_total",
			Help: "Total number of mailbox messages handled by sync (count)",
		},
		[]string{"status"},
	)

	MailSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mail_sync_duration_ms",
			Help:    "Duration of a full mailbox sync in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)

	ExtractionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_requests_total",
			Help: "Total number of extraction adapter calls (count)",
		},
		[]string{"status"},
	)

	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_ms",
			Help:    "Duration of extraction adapter calls in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"status"},
	)

	MatchDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_decisions_total",
			Help: "Total number of matching engine decisions (count)",
		},
		[]string{"outcome"}, // "tier1", "tier2", "no_match", "conflict"
	)

	ProposalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proposals_total",
			Help: "Total number of proposed update sets written (count)",
		},
	)

	DraftsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drafts_created_total",
			Help: "Total number of draft bookings created by reconciliation (count)",
		},
	)

	MessagesFilteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_filtered_total",
			Help: "Total number of ingested messages skipped by filter rules (count)",
		},
	)

	BatchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_runs_total",
			Help: "Total number of reconciliation batch runs (count)",
		},
		[]string{"status"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_duration_ms",
			Help:    "Duration of reconciliation batch runs in milliseconds",
			Buckets: []float64{100, 500, 1000, 5000, 15000, 30000, 60000, 120000},
		},
	)

	ReviewTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_transitions_total",
			Help: "Total number of review state machine transitions (count)",
		},
		[]string{"transition"}, // "accept", "reject", "acknowledge"
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of fallback decisions taken on component errors (count)",
		},
		[]string{"component", "action", "reason"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests seen by the rate limiter (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breakers (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failed requests through circuit breakers (count)",
		},
		[]string{"name"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of events published to Kafka (count)",
		},
		[]string{"topic", "status"},
	)
)

var registerOnce sync.Once

// Register registers all pipeline metrics with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MailSyncedTotal,
			MailSyncDuration,
			ExtractionRequestsTotal,
			ExtractionDuration,
			MatchDecisionsTotal,
			ProposalsTotal,
			DraftsCreatedTotal,
			MessagesFilteredTotal,
			BatchRunsTotal,
			BatchDuration,
			ReviewTransitionsTotal,
			FallbackUsageTotal,
			RateLimitRequestsTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			KafkaMessagesWrittenTotal,
		)
	})
}

func ObserveExtractionDuration(d time.Duration, status string) {
	ExtractionDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}

func ObserveBatchDuration(d time.Duration) {
	BatchDuration.Observe(float64(d.Milliseconds()))
}
