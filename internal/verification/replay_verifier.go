package verification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/simulation"
	"alert-backtest-lab/internal/storage"
	"alert-backtest-lab/internal/strategy"
	"alert-backtest-lab/internal/window"
)

var (
	// ErrTradeNotFound is returned when trade ID doesn't exist.
	ErrTradeNotFound = errors.New("trade not found")

	// ErrAlertNotFound is returned when a stored result references a missing alert.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrUnknownConfig is returned when a stored result's config was not registered.
	ErrUnknownConfig = errors.New("unknown config ID")
)

// compiledConfig is a registered configuration with its strategies built.
type compiledConfig struct {
	cfg      domain.SimulationConfig
	entry    strategy.EntryStrategy
	exit     strategy.ExitStrategy
	resolver *window.Resolver
}

// ReplayVerifier implements Verifier.
type ReplayVerifier struct {
	tradeResultStore storage.TradeResultStore
	alertStore       storage.AlertStore
	runner           *simulation.Runner
	configs          map[string]compiledConfig
	logger           *zap.Logger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	TradeResultStore storage.TradeResultStore
	AlertStore       storage.AlertStore
	CandleStore      storage.CandleStore
	// Configs lists every configuration whose stored results may be verified.
	Configs []domain.SimulationConfig
	Logger  *zap.Logger
}

// NewReplayVerifier creates a new ReplayVerifier. Each config is validated
// and keyed by its config ID.
func NewReplayVerifier(opts ReplayVerifierOptions) (*ReplayVerifier, error) {
	if opts.TradeResultStore == nil {
		return nil, errors.New("verifier requires a trade result store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runner, err := simulation.NewRunner(simulation.RunnerOptions{
		AlertStore:  opts.AlertStore,
		CandleStore: opts.CandleStore,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	configs := make(map[string]compiledConfig, len(opts.Configs))
	for _, cfg := range opts.Configs {
		cc, id, err := compile(cfg)
		if err != nil {
			return nil, err
		}
		configs[id] = cc
	}

	return &ReplayVerifier{
		tradeResultStore: opts.TradeResultStore,
		alertStore:       opts.AlertStore,
		runner:           runner,
		configs:          configs,
		logger:           logger,
	}, nil
}

func compile(cfg domain.SimulationConfig) (compiledConfig, string, error) {
	entry, err := strategy.EntryFromConfig(cfg.Entry)
	if err != nil {
		return compiledConfig{}, "", fmt.Errorf("entry config: %w", err)
	}
	exit, err := strategy.ExitFromConfig(cfg.Exit)
	if err != nil {
		return compiledConfig{}, "", fmt.Errorf("exit config: %w", err)
	}
	if !cfg.StopReference.IsValid() {
		return compiledConfig{}, "", fmt.Errorf("%w: %q", simulation.ErrInvalidStopReference, cfg.StopReference)
	}
	resolver, err := window.NewResolver(cfg.IntervalSeconds, cfg.HorizonHours)
	if err != nil {
		return compiledConfig{}, "", err
	}

	id := strategy.ConfigID(entry, exit, cfg.StopReference)
	return compiledConfig{cfg: cfg, entry: entry, exit: exit, resolver: resolver}, id, nil
}

// VerifyTrade verifies a single trade by replaying simulation.
func (v *ReplayVerifier) VerifyTrade(ctx context.Context, tradeID string) (*VerificationResult, error) {
	stored, err := v.tradeResultStore.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	results, err := v.verify(ctx, stored.ConfigID, []*domain.TradeResult{stored})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// VerifyConfig verifies all stored results of configID.
// Results that cannot be replayed are recorded as divergent with an Error field.
func (v *ReplayVerifier) VerifyConfig(ctx context.Context, configID string) (*VerificationReport, error) {
	stored, err := v.tradeResultStore.GetByConfigID(ctx, configID)
	if err != nil {
		return nil, err
	}

	results, err := v.verify(ctx, configID, stored)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		ConfigID:    configID,
		TotalTrades: len(results),
		Results:     results,
	}
	for _, r := range results {
		if r.Match {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
	}

	v.logger.Info("verification complete",
		zap.String("config_id", configID),
		zap.Int("trades", report.TotalTrades),
		zap.Int("divergent", report.DivergentTrades),
	)
	return report, nil
}

// verify replays stored results that all share configID.
func (v *ReplayVerifier) verify(ctx context.Context, configID string, stored []*domain.TradeResult) ([]VerificationResult, error) {
	cc, ok := v.configs[configID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConfig, configID)
	}

	results := make([]VerificationResult, len(stored))
	alerts := make([]*domain.Alert, 0, len(stored))
	pending := make([]int, 0, len(stored))

	for i, s := range stored {
		results[i].TradeID = s.TradeID
		alert, err := v.alertStore.GetByID(ctx, s.AlertID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			results[i].Divergences = []FieldDivergence{{Field: "Error", Actual: fmt.Sprintf("%v: %s", ErrAlertNotFound, s.AlertID)}}
			continue
		}
		alerts = append(alerts, alert)
		pending = append(pending, i)
	}

	jobs, err := v.runner.PrepareAlerts(ctx, cc.resolver, alerts)
	if err != nil {
		return nil, err
	}

	for k, j := range jobs {
		i := pending[k]
		replayed, err := simulation.SimulateJob(j, cc.entry, cc.exit, cc.cfg.StopReference, configID)
		if err != nil {
			results[i].Divergences = []FieldDivergence{{Field: "Error", Actual: err.Error()}}
			continue
		}
		results[i].Divergences = CompareTradeResults(stored[i], replayed)
		results[i].Match = len(results[i].Divergences) == 0
	}

	return results, nil
}

// ConfigID returns the identifier stored results of cfg carry.
func ConfigID(cfg domain.SimulationConfig) (string, error) {
	_, id, err := compile(cfg)
	return id, err
}
