package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/observability"
	"alert-backtest-lab/internal/storage"
	"alert-backtest-lab/internal/strategy"
	"alert-backtest-lab/internal/window"
)

// Runner errors
var (
	ErrMissingAlertStore  = errors.New("runner requires an alert store")
	ErrMissingCandleStore = errors.New("runner requires a candle store")
	ErrNotTPSLExit        = errors.New("TP/SL mode requires a TP_SL exit config")
)

// Job pairs an alert with its resolved candle window.
type Job struct {
	Alert  *domain.Alert
	Window window.Window
}

// AlertPrice is the open of the first in-window candle, or 0 when the window is empty.
func (j Job) AlertPrice() float64 {
	if len(j.Window.Candles) == 0 {
		return 0
	}
	return j.Window.Candles[0].Open
}

// Runner loads alerts and candles and evaluates them in batch.
type Runner struct {
	alertStore       storage.AlertStore
	candleStore      storage.CandleStore
	tradeResultStore storage.TradeResultStore
	logger           *zap.Logger
	workers          int
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	AlertStore       storage.AlertStore
	CandleStore      storage.CandleStore
	TradeResultStore storage.TradeResultStore // optional, results are persisted when set
	Logger           *zap.Logger
	Workers          int // <= 0 uses runtime.NumCPU()
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.AlertStore == nil {
		return nil, ErrMissingAlertStore
	}
	if opts.CandleStore == nil {
		return nil, ErrMissingCandleStore
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		alertStore:       opts.AlertStore,
		candleStore:      opts.CandleStore,
		tradeResultStore: opts.TradeResultStore,
		logger:           logger,
		workers:          opts.Workers,
	}, nil
}

// Prepare loads every alert and resolves its candle window.
// Jobs are ordered by (alert time, alert id).
func (r *Runner) Prepare(ctx context.Context, intervalSeconds int, horizonHours float64) ([]Job, error) {
	resolver, err := window.NewResolver(intervalSeconds, horizonHours)
	if err != nil {
		return nil, err
	}

	alerts, err := r.alertStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}

	return r.PrepareAlerts(ctx, resolver, alerts)
}

// PrepareAlerts resolves windows for the given alerts, loading each token's series once.
func (r *Runner) PrepareAlerts(ctx context.Context, resolver *window.Resolver, alerts []*domain.Alert) ([]Job, error) {
	intervalSeconds := int(resolver.IntervalMs() / 1000)
	series := make(map[string][]*domain.Candle)

	for _, a := range alerts {
		if _, loaded := series[a.Token]; loaded {
			continue
		}

		start := time.Now()
		candles, err := r.candleStore.GetByToken(ctx, a.Token, intervalSeconds)
		observability.RecordStoreQuery("candles", "get_by_token", time.Since(start).Seconds(), err)
		if err != nil {
			return nil, fmt.Errorf("load candles for %s: %w", a.Token, err)
		}
		if err := window.ValidateSeries(candles); err != nil {
			return nil, fmt.Errorf("candles for %s: %w", a.Token, err)
		}
		series[a.Token] = candles
	}

	jobs := make([]Job, len(alerts))
	for i, a := range alerts {
		jobs[i] = Job{Alert: a, Window: resolver.Resolve(series[a.Token], a.TimestampMs)}
	}

	r.logger.Debug("prepared jobs",
		zap.Int("alerts", len(alerts)),
		zap.Int("tokens", len(series)),
	)
	return jobs, nil
}

// RunPaths computes baseline path metrics for every job.
func (r *Runner) RunPaths(ctx context.Context, jobs []Job) ([]*domain.PathMetrics, error) {
	start := time.Now()

	rows, err := ParallelMap(ctx, r.workers, jobs, func(_ context.Context, j Job) (*domain.PathMetrics, error) {
		m := window.ComputePathMetrics(j.Alert, j.Window)
		observability.RecordPathStatus(string(m.Status))
		return m, nil
	})
	r.finish("path", start, len(jobs), err)
	return rows, err
}

// RunTPSL evaluates a fixed take-profit / stop-loss pair with immediate entry.
// Stops and targets are anchored to the entry price.
func (r *Runner) RunTPSL(ctx context.Context, jobs []Job, exitCfg domain.ExitConfig) ([]domain.TPSLRow, error) {
	if exitCfg.ExitType != domain.ExitTypeTakeProfitStop {
		return nil, ErrNotTPSLExit
	}
	exit, err := strategy.ExitFromConfig(exitCfg)
	if err != nil {
		return nil, err
	}
	entry := strategy.NewImmediateEntry()
	start := time.Now()

	rows, err := ParallelMap(ctx, r.workers, jobs, func(_ context.Context, j Job) (domain.TPSLRow, error) {
		status := window.Status(j.Window)
		if status != domain.PathStatusOK {
			observability.RecordPathStatus(string(status))
			return NewTPSLRow(j.Alert, status, nil), nil
		}

		res, err := Simulate(&TradeInput{
			AlertID:       j.Alert.AlertID,
			Token:         j.Alert.Token,
			Caller:        j.Alert.Caller,
			AlertPrice:    j.AlertPrice(),
			AlertTimeMs:   j.Window.EntryTimeMs,
			Candles:       j.Window.Candles,
			Entry:         entry,
			Exit:          exit,
			StopReference: domain.StopReferenceEntry,
		})
		if err != nil {
			return domain.TPSLRow{}, err
		}
		observability.RecordTradeSimulated(res.Exit.Reason)
		return NewTPSLRow(j.Alert, status, res), nil
	})
	r.finish("tpsl", start, len(jobs), err)
	return rows, err
}

// RunTrades runs the full entry/exit simulation for every job and persists results when a store is set.
func (r *Runner) RunTrades(ctx context.Context, jobs []Job, cfg domain.SimulationConfig) ([]*domain.TradeResult, error) {
	entry, err := strategy.EntryFromConfig(cfg.Entry)
	if err != nil {
		return nil, fmt.Errorf("entry config: %w", err)
	}
	exit, err := strategy.ExitFromConfig(cfg.Exit)
	if err != nil {
		return nil, fmt.Errorf("exit config: %w", err)
	}
	if !cfg.StopReference.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStopReference, cfg.StopReference)
	}
	configID := strategy.ConfigID(entry, exit, cfg.StopReference)
	start := time.Now()

	results, err := ParallelMap(ctx, r.workers, jobs, func(_ context.Context, j Job) (*domain.TradeResult, error) {
		return SimulateJob(j, entry, exit, cfg.StopReference, configID)
	})
	if err != nil {
		r.finish("trade", start, len(jobs), err)
		return nil, err
	}

	for _, res := range results {
		if res.Exit != nil {
			observability.RecordTradeSimulated(res.Exit.Reason)
		} else {
			observability.RecordEntryMissed(res.Entry.MissedReason)
		}
	}

	if r.tradeResultStore != nil {
		qstart := time.Now()
		err = r.tradeResultStore.InsertBulk(ctx, results)
		observability.RecordStoreQuery("trade_results", "insert_bulk", time.Since(qstart).Seconds(), err)
		if err != nil {
			r.finish("trade", start, len(jobs), err)
			return nil, fmt.Errorf("persist trade results: %w", err)
		}
	}

	r.finish("trade", start, len(jobs), nil)
	return results, nil
}

// SimulateJob runs one job with waits measured from the aligned entry time.
// An empty window has no alert price, so the entry is missed with no_candles.
func SimulateJob(j Job, entry strategy.EntryStrategy, exit strategy.ExitStrategy, ref domain.StopReference, configID string) (*domain.TradeResult, error) {
	if j.AlertPrice() <= 0 {
		reason := domain.MissedNoCandles
		if len(j.Window.Candles) > 0 {
			reason = domain.MissedBadEntryPrice
		}
		return missedResult(j.Alert, configID, reason), nil
	}

	res, err := Simulate(&TradeInput{
		AlertID:       j.Alert.AlertID,
		Token:         j.Alert.Token,
		Caller:        j.Alert.Caller,
		AlertPrice:    j.AlertPrice(),
		AlertTimeMs:   j.Window.EntryTimeMs,
		Candles:       j.Window.Candles,
		Entry:         entry,
		Exit:          exit,
		StopReference: ref,
		ConfigID:      configID,
	})
	if err != nil {
		return nil, err
	}
	res.AlertTimeMs = j.Alert.TimestampMs
	return res, nil
}

func (r *Runner) finish(kind string, start time.Time, n int, err error) {
	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
		r.logger.Error("run failed", zap.String("mode", kind), zap.Error(err))
	} else {
		r.logger.Info("run complete",
			zap.String("mode", kind),
			zap.Int("alerts", n),
			zap.Duration("elapsed", elapsed),
		)
	}
	observability.RecordRun(kind, status, elapsed.Seconds())
}
