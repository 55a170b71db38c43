package metrics

import (
	"context"
	"errors"
	"fmt"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes trial metrics from persisted trade results.
type Aggregator struct {
	tradeResultStore storage.TradeResultStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(store storage.TradeResultStore) *Aggregator {
	return &Aggregator{tradeResultStore: store}
}

// ComputeForConfig loads every result stored under configID and summarizes them.
// Returns ErrNoTrades if nothing was stored for the configuration.
func (a *Aggregator) ComputeForConfig(ctx context.Context, configID string) (*domain.TrialMetrics, error) {
	results, err := a.tradeResultStore.GetByConfigID(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("load trade results: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoTrades
	}

	m := FromTradeResults(results)
	return &m, nil
}
