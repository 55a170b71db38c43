package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/metrics"
	"alert-backtest-lab/internal/storage"
)

// Generator produces reports from run outputs and stored trade results.
type Generator struct {
	tradeResultStore storage.TradeResultStore
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. store may be nil when
// ForConfigs is not used.
func NewGenerator(store storage.TradeResultStore) *Generator {
	return &Generator{
		tradeResultStore: store,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// ForConfigs summarizes the stored results of each configuration.
// Configurations with no stored results are left out.
func (g *Generator) ForConfigs(ctx context.Context, configIDs []string) (*Report, error) {
	agg := metrics.NewAggregator(g.tradeResultStore)

	rows := make([]ConfigMetricRow, 0, len(configIDs))
	for _, id := range configIDs {
		m, err := agg.ComputeForConfig(ctx, id)
		if errors.Is(err, metrics.ErrNoTrades) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, ConfigMetricRow{ConfigID: id, Metrics: *m})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ConfigID < rows[j].ConfigID
	})

	return &Report{
		GeneratedAt: g.now(),
		Title:       "Trade Results",
		Configs:     rows,
	}, nil
}

// ForTrials builds a grid report.
func (g *Generator) ForTrials(objective string, best domain.Trial, trials []domain.Trial) *Report {
	rows := make([]TrialRow, len(trials))
	for i, t := range trials {
		rows[i] = trialRow(t)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Index < rows[j].Index
	})

	b := trialRow(best)
	return &Report{
		GeneratedAt: g.now(),
		Title:       "Grid Optimization",
		Objective:   objective,
		Best:        &b,
		Trials:      rows,
	}
}

// ForPortfolio builds a portfolio replay report.
func (g *Generator) ForPortfolio(summary domain.PortfolioSummary, trades []domain.PortfolioTrade) *Report {
	m := metrics.FromPortfolio(trades, summary)
	return &Report{
		GeneratedAt:      g.now(),
		Title:            "Portfolio Replay",
		Portfolio:        &summary,
		PortfolioMetrics: &m,
	}
}

func trialRow(t domain.Trial) TrialRow {
	return TrialRow{
		Index:   t.Index,
		Params:  t.Params,
		Cached:  t.Cached,
		Metrics: t.Metrics,
	}
}
