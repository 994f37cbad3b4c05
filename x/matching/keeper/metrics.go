package keeper

import (
	"errors"
	"sync"

	sdkerrors "cosmossdk.io/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/calctra/resmatch/x/matching/types"
)

// MatchingMetrics holds all Prometheus metrics for the Matching module
type MatchingMetrics struct {
	// Registry metrics
	ResourcesRegistered *prometheus.CounterVec
	RequestsSubmitted   *prometheus.CounterVec

	// Matching metrics
	MatchAttempts     *prometheus.CounterVec
	ActiveMatches     prometheus.Gauge
	CandidatePoolSize prometheus.Histogram

	// Lifecycle metrics
	Completions   *prometheus.CounterVec
	Cancellations *prometheus.CounterVec
	UsageDuration prometheus.Histogram

	// Health metrics
	SettlementFailures prometheus.Counter
	ConsistencyFaults  prometheus.Counter
	OperationLatency   *prometheus.HistogramVec
}

var (
	matchingMetricsOnce sync.Once
	matchingMetrics     *MatchingMetrics
)

// NewMatchingMetrics creates and registers Matching metrics (singleton pattern)
func NewMatchingMetrics() *MatchingMetrics {
	matchingMetricsOnce.Do(func() {
		matchingMetrics = &MatchingMetrics{
			ResourcesRegistered: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "resources_registered_total",
					Help:      "Total resources registered",
				},
				[]string{"resource_type"},
			),
			RequestsSubmitted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "requests_submitted_total",
					Help:      "Total computation requests submitted",
				},
				[]string{"computation_type"},
			),
			MatchAttempts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "match_attempts_total",
					Help:      "Match attempts by outcome",
				},
				[]string{"outcome"},
			),
			ActiveMatches: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "active_matches",
					Help:      "Requests currently engaged with a resource",
				},
			),
			CandidatePoolSize: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "candidate_pool_size",
					Help:      "Resources considered per best-candidate selection",
					Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
				},
			),
			Completions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "completions_total",
					Help:      "Finished computations by terminal status",
				},
				[]string{"status"},
			),
			Cancellations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "cancellations_total",
					Help:      "Cancelled requests by the status they were cancelled from",
				},
				[]string{"from"},
			),
			UsageDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "usage_duration_units",
					Help:      "Reported actual duration of finished computations",
					Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
				},
			),
			SettlementFailures: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "settlement_failures_total",
					Help:      "Completions aborted by a refused transfer",
				},
			),
			ConsistencyFaults: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "consistency_faults_total",
					Help:      "Counter underflows and other disagreements between counters and records",
				},
			),
			OperationLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "resmatch",
					Subsystem: "matching",
					Name:      "operation_duration_seconds",
					Help:      "Keeper operation latency",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"operation", "outcome"},
			),
		}
	})
	return matchingMetrics
}

// matchOutcome maps a match error to a low-cardinality label.
func matchOutcome(err error) string {
	if err == nil {
		return "matched"
	}
	var coded *sdkerrors.Error
	for _, sentinel := range []*sdkerrors.Error{
		types.ErrUnauthorized,
		types.ErrUnauthorizedMatcher,
		types.ErrRequestNotPending,
		types.ErrResourceNotActive,
		types.ErrInsufficientComputationPower,
		types.ErrInsufficientMemory,
		types.ErrInsufficientCapability,
		types.ErrPriceTooHigh,
		types.ErrLocationMismatch,
		types.ErrReputationTooLow,
		types.ErrResourceEngaged,
		types.ErrRequestNotFound,
		types.ErrResourceNotFound,
	} {
		if errors.Is(err, sentinel) {
			coded = sentinel
			break
		}
	}
	if coded == nil {
		return "error"
	}
	return coded.Error()
}

func (m *MatchingMetrics) RecordResourceRegistered(resourceType string) {
	if m == nil {
		return
	}
	m.ResourcesRegistered.WithLabelValues(resourceType).Inc()
}

func (m *MatchingMetrics) RecordRequestSubmitted(computationType string) {
	if m == nil {
		return
	}
	m.RequestsSubmitted.WithLabelValues(computationType).Inc()
}

func (m *MatchingMetrics) RecordMatchAttempt(err error) {
	if m == nil {
		return
	}
	m.MatchAttempts.WithLabelValues(matchOutcome(err)).Inc()
}

func (m *MatchingMetrics) SetActiveMatches(n uint64) {
	if m == nil {
		return
	}
	m.ActiveMatches.Set(float64(n))
}

func (m *MatchingMetrics) ObserveCandidatePool(n int) {
	if m == nil {
		return
	}
	m.CandidatePoolSize.Observe(float64(n))
}

func (m *MatchingMetrics) RecordCompletion(status types.RequestStatus, duration uint64) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(status.String()).Inc()
	m.UsageDuration.Observe(float64(duration))
}

func (m *MatchingMetrics) RecordCancellation(from types.RequestStatus) {
	if m == nil {
		return
	}
	m.Cancellations.WithLabelValues(from.String()).Inc()
}

func (m *MatchingMetrics) RecordSettlementFailure() {
	if m == nil {
		return
	}
	m.SettlementFailures.Inc()
}

func (m *MatchingMetrics) RecordConsistencyFault() {
	if m == nil {
		return
	}
	m.ConsistencyFaults.Inc()
}

func (m *MatchingMetrics) ObserveOperation(operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OperationLatency.WithLabelValues(operation, outcome).Observe(seconds)
}
