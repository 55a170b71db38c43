package reporting

import (
	"time"

	"alert-backtest-lab/internal/domain"
)

// Report is a human-readable summary of one backtest run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Title       string

	// Portfolio replay (nil unless the run was a portfolio replay)
	Portfolio        *domain.PortfolioSummary
	PortfolioMetrics *domain.TrialMetrics

	// Grid (empty unless the run was an optimization)
	Objective string
	Best      *TrialRow
	Trials    []TrialRow // grid order

	// Stored configurations (sorted by config_id)
	Configs []ConfigMetricRow
}

// TrialRow represents one evaluated grid point.
type TrialRow struct {
	Index   int
	Params  string
	Cached  bool
	Metrics domain.TrialMetrics
}

// ConfigMetricRow summarizes the persisted results of one configuration.
type ConfigMetricRow struct {
	ConfigID string
	Metrics  domain.TrialMetrics
}
