package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_ledger_events_appended_total",
		Help: "Total number of events appended to the event store, labelled by event type.",
	}, []string{"event_type"})

	ConcurrencyConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_ledger_concurrency_conflicts_total",
		Help: "Total number of appends rejected by the optimistic version check.",
	}, []string{"aggregate_type"})

	ProjectionEventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_ledger_projection_events_applied_total",
		Help: "Total number of events applied by a projection.",
	}, []string{"projection"})

	ProjectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_ledger_projection_failures_total",
		Help: "Total number of times a projection halted on an event.",
	}, []string{"projection"})

	ProjectionCheckpoint = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fraud_ledger_projection_checkpoint",
		Help: "Last event id fully applied by a projection.",
	}, []string{"projection"})

	TransactionsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_ledger_transactions_scored_total",
		Help: "Total number of transactions scored, labelled by model version kind and verdict.",
	}, []string{"mode", "verdict"})

	FraudFlagsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraud_ledger_fraud_flags_raised_total",
		Help: "Total number of FraudFlagRaised events appended by the scoring pipeline.",
	})

	RuleHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_ledger_rule_hits_total",
		Help: "Total number of rule overlay hits, labelled by reason code.",
	}, []string{"reason"})

	ScoringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fraud_ledger_scoring_duration_ms",
		Help:    "Per-transaction scoring latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	AlertsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_ledger_alerts_published_total",
		Help: "Total number of fraud alerts published, labelled by status.",
	}, []string{"status"})
)
