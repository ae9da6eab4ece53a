package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/locator/internal/core/domain"
	"github.com/vietddude/locator/internal/location"
)

var (
	// AcquisitionsTotal tracks settled one-shot acquisitions by result kind
	AcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locator_acquisitions_total",
			Help: "Total number of one-shot acquisitions by result",
		},
		[]string{"result"},
	)

	// AcquisitionLatency tracks end-to-end acquisition latency including retries
	AcquisitionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "locator_acquisition_latency_seconds",
			Help:    "One-shot acquisition latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30, 60},
		},
		[]string{"result"},
	)

	// RaceOutcomes tracks which settlement event decided each race
	RaceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locator_race_outcomes_total",
			Help: "Total number of races by settlement outcome",
		},
		[]string{"outcome"},
	)

	// StrategyLatency tracks provider latency per strategy
	StrategyLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "locator_strategy_latency_seconds",
			Help:    "Strategy completion latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy", "status"},
	)

	// LateResultsTotal tracks strategy results that arrived after the race settled
	LateResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locator_late_results_total",
			Help: "Total number of discarded strategy results",
		},
		[]string{"strategy"},
	)

	// AttemptFailuresTotal tracks failed attempts by error kind
	AttemptFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locator_attempt_failures_total",
			Help: "Total number of failed acquisition attempts",
		},
		[]string{"kind", "retried"},
	)

	// BackgroundRequestsTotal tracks best-effort background permission requests
	BackgroundRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locator_background_requests_total",
			Help: "Total number of background permission requests by result",
		},
		[]string{"result"},
	)

	// ActiveWatches tracks open continuous watches
	ActiveWatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "locator_active_watches",
			Help: "Number of open continuous watches",
		},
	)

	// ProviderStatus tracks provider health (0 healthy, 1 degraded, 2 unavailable)
	ProviderStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "locator_provider_status",
			Help: "Position provider health status",
		},
		[]string{"role", "provider"},
	)

	// ProviderErrorRate tracks provider error rate over all requests
	ProviderErrorRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "locator_provider_error_rate",
			Help: "Position provider error rate",
		},
		[]string{"role", "provider"},
	)

	// DBConnectionPoolUsage tracks the percentage of DB connections in use
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "locator_db_connection_pool_usage_percent",
			Help: "Percentage of database connection pool in use",
		},
	)
)

// Observer records acquisition events as prometheus metrics.
type Observer struct{}

var _ location.Observer = Observer{}

func (Observer) RaceStarted() {}

func (Observer) StrategyCompleted(s location.Strategy, _ *domain.Location, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = domain.KindOf(err).String()
	}
	StrategyLatency.WithLabelValues(string(s), status).Observe(elapsed.Seconds())
}

func (Observer) RaceSettled(o location.Outcome, _ error, _ time.Duration) {
	RaceOutcomes.WithLabelValues(string(o)).Inc()
}

func (Observer) LateResult(s location.Strategy, _ *domain.Location, _ error) {
	LateResultsTotal.WithLabelValues(string(s)).Inc()
}

func (Observer) AttemptFailed(_ int, err error, willRetry bool) {
	retried := "false"
	if willRetry {
		retried = "true"
	}
	AttemptFailuresTotal.WithLabelValues(domain.KindOf(err).String(), retried).Inc()
}

func (Observer) Acquired(_ domain.Location, elapsed time.Duration) {
	AcquisitionsTotal.WithLabelValues("ok").Inc()
	AcquisitionLatency.WithLabelValues("ok").Observe(elapsed.Seconds())
}

func (Observer) Rejected(kind domain.ErrorKind, elapsed time.Duration) {
	AcquisitionsTotal.WithLabelValues(kind.String()).Inc()
	AcquisitionLatency.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

func (Observer) Canceled(elapsed time.Duration) {
	AcquisitionsTotal.WithLabelValues("canceled").Inc()
	AcquisitionLatency.WithLabelValues("canceled").Observe(elapsed.Seconds())
}

func (Observer) BackgroundRequested(granted bool, err error) {
	result := "granted"
	switch {
	case err != nil:
		result = domain.KindOf(err).String()
	case !granted:
		result = "refused"
	}
	BackgroundRequestsTotal.WithLabelValues(result).Inc()
}

func (Observer) WatchStarted(location.WatchHandle, bool) {
	ActiveWatches.Inc()
}

func (Observer) WatchStopped(location.WatchHandle) {
	ActiveWatches.Dec()
}
