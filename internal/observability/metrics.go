// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	TradesSimulated *prometheus.CounterVec
	EntriesMissed   *prometheus.CounterVec
	PathStatuses    *prometheus.CounterVec

	// Portfolio metrics
	PortfolioTrades *prometheus.CounterVec
	PortfolioSkips  *prometheus.CounterVec

	// Optimizer metrics
	GridTrials     *prometheus.CounterVec
	TrialCacheHits *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Storage metrics
	StoreQueryDuration *prometheus.HistogramVec
	StoreQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "alert_backtest"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TradesSimulated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated by exit reason",
		}, []string{"exit_reason"}),
		EntriesMissed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "entries_missed_total",
			Help:      "Total number of entries that never filled by reason",
		}, []string{"reason"}),
		PathStatuses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "path_status_total",
			Help:      "Total number of path metric rows by status",
		}, []string{"status"}),

		PortfolioTrades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "trades_executed_total",
			Help:      "Total number of portfolio trades executed by outcome",
		}, []string{"outcome"}),
		PortfolioSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "trades_skipped_total",
			Help:      "Total number of alerts skipped by the portfolio by reason",
		}, []string{"reason"}),

		GridTrials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "trials_total",
			Help:      "Total number of grid trials evaluated by mode",
		}, []string{"mode"}),
		TrialCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "trial_cache_total",
			Help:      "Trial cache lookups by result",
		}, []string{"result"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of runs by kind and status",
		}, []string{"kind", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Run duration by kind",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"kind"}),

		StoreQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Store query duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of store query errors",
		}, []string{"store", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordTradeSimulated counts a simulated trade by exit reason.
func RecordTradeSimulated(exitReason string) {
	DefaultMetrics.TradesSimulated.WithLabelValues(exitReason).Inc()
}

// RecordEntryMissed counts a missed entry.
func RecordEntryMissed(reason string) {
	DefaultMetrics.EntriesMissed.WithLabelValues(reason).Inc()
}

// RecordPathStatus counts a path metrics row.
func RecordPathStatus(status string) {
	DefaultMetrics.PathStatuses.WithLabelValues(status).Inc()
}

// RecordPortfolioTrade counts an executed portfolio trade as win or loss.
func RecordPortfolioTrade(win bool) {
	outcome := "loss"
	if win {
		outcome = "win"
	}
	DefaultMetrics.PortfolioTrades.WithLabelValues(outcome).Inc()
}

// RecordPortfolioSkip counts a skipped alert.
func RecordPortfolioSkip(reason string) {
	DefaultMetrics.PortfolioSkips.WithLabelValues(reason).Inc()
}

// RecordGridTrial counts an evaluated grid trial.
func RecordGridTrial(mode string) {
	DefaultMetrics.GridTrials.WithLabelValues(mode).Inc()
}

// RecordTrialCache records a cache hit or miss.
func RecordTrialCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.TrialCacheHits.WithLabelValues(result).Inc()
}

// RecordRun records a completed run.
func RecordRun(kind, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordStoreQuery records store query metrics.
func RecordStoreQuery(store, operation string, seconds float64, err error) {
	DefaultMetrics.StoreQueryDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.StoreQueryErrors.WithLabelValues(store, operation).Inc()
	}
}
