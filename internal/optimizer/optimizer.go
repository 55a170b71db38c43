package optimizer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"alert-backtest-lab/internal/cache"
	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/idhash"
	"alert-backtest-lab/internal/metrics"
	"alert-backtest-lab/internal/observability"
	"alert-backtest-lab/internal/portfolio"
	"alert-backtest-lab/internal/simulation"
	"alert-backtest-lab/internal/strategy"
)

// Scoring modes.
const (
	ModeTrade     = "trade"
	ModePortfolio = "portfolio"
)

// Optimizer errors
var (
	ErrUnknownMode      = errors.New("mode must be trade or portfolio")
	ErrUnknownObjective = errors.New("unknown objective")
	ErrPortfolioEntry   = errors.New("portfolio mode only supports IMMEDIATE entry")
	ErrNoPoints         = errors.New("grid has no points")
)

// Report is the outcome of a grid run.
type Report struct {
	Objective string
	Mode      string
	Best      domain.Trial
	Trials    []domain.Trial // grid order
}

// Optimizer scores grid points against a fixed set of jobs.
type Optimizer struct {
	mode      string
	jobs      []simulation.Job
	ref       domain.StopReference
	base      domain.PortfolioConfig
	cache     cache.TrialCache
	datasetID string
	logger    *zap.Logger
	workers   int
}

// Options contains configuration for creating an Optimizer.
type Options struct {
	Mode          string
	Jobs          []simulation.Job
	StopReference domain.StopReference   // trade mode
	Portfolio     domain.PortfolioConfig // portfolio mode; TP/SL, order and hold come from each point
	Cache         cache.TrialCache       // optional
	Logger        *zap.Logger
	Workers       int
}

// New creates an optimizer.
func New(opts Options) (*Optimizer, error) {
	switch opts.Mode {
	case ModeTrade:
		if !opts.StopReference.IsValid() {
			return nil, fmt.Errorf("%w: %q", simulation.ErrInvalidStopReference, opts.StopReference)
		}
	case ModePortfolio:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Optimizer{
		mode:      opts.Mode,
		jobs:      opts.Jobs,
		ref:       opts.StopReference,
		base:      opts.Portfolio,
		cache:     opts.Cache,
		datasetID: Fingerprint(opts.Jobs),
		logger:    logger,
		workers:   opts.Workers,
	}, nil
}

// Run evaluates every grid point and picks the best by objective.
// max_drawdown is minimized, every other objective maximized. Ties keep the earliest trial.
func (o *Optimizer) Run(ctx context.Context, axes Axes, objective string) (*Report, error) {
	probe := domain.TrialMetrics{}
	if _, ok := probe.Objective(objective); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownObjective, objective)
	}

	points, err := axes.Enumerate()
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if o.mode == ModePortfolio {
		for _, p := range points {
			if p.Entry.EntryType != domain.EntryTypeImmediate {
				return nil, ErrPortfolioEntry
			}
		}
	}

	start := time.Now()
	report := &Report{Objective: objective, Mode: o.mode, Trials: make([]domain.Trial, 0, len(points))}
	minimize := domain.ObjectiveMinimized(objective)
	bestIdx := -1
	bestVal := 0.0

	for i, p := range points {
		trial, err := o.evaluate(ctx, i, p)
		if err != nil {
			o.logger.Error("trial failed", zap.String("params", p.Params()), zap.Error(err))
			observability.RecordRun("optimize", "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("trial %d (%s): %w", i, p.Params(), err)
		}
		report.Trials = append(report.Trials, trial)

		v, _ := trial.Metrics.Objective(objective)
		if bestIdx < 0 || better(v, bestVal, minimize) {
			bestIdx, bestVal = i, v
		}
	}

	report.Best = report.Trials[bestIdx]
	o.logger.Info("grid complete",
		zap.String("mode", o.mode),
		zap.String("objective", objective),
		zap.Int("trials", len(report.Trials)),
		zap.String("best", report.Best.Params),
		zap.Float64("best_value", bestVal),
	)
	observability.RecordRun("optimize", "success", time.Since(start).Seconds())
	return report, nil
}

func better(v, best float64, minimize bool) bool {
	if math.IsNaN(v) {
		return false
	}
	if minimize {
		return v < best
	}
	return v > best
}

func (o *Optimizer) evaluate(ctx context.Context, index int, p Point) (domain.Trial, error) {
	params := o.trialParams(p)
	trial := domain.Trial{
		Index:  index,
		Params: p.Params(),
		Key:    idhash.ComputeTrialKey(o.datasetID, params),
		Mode:   o.mode,
	}

	if o.cache != nil {
		cached, ok, err := o.cache.Get(ctx, trial.Key)
		if err != nil {
			o.logger.Warn("trial cache get failed", zap.String("key", trial.Key), zap.Error(err))
		}
		observability.RecordTrialCache(ok)
		if ok {
			trial.Metrics = *cached
			trial.Cached = true
			return trial, nil
		}
	}

	var (
		m   domain.TrialMetrics
		err error
	)
	switch o.mode {
	case ModeTrade:
		m, err = o.scoreTrades(ctx, p)
	case ModePortfolio:
		m, err = o.scorePortfolio(ctx, p)
	}
	if err != nil {
		return trial, err
	}
	trial.Metrics = m
	observability.RecordGridTrial(o.mode)

	if o.cache != nil {
		if err := o.cache.Put(ctx, trial.Key, m); err != nil {
			o.logger.Warn("trial cache put failed", zap.String("key", trial.Key), zap.Error(err))
		}
	}
	return trial, nil
}

// trialParams extends the point with every mode-level setting that affects the score.
func (o *Optimizer) trialParams(p Point) string {
	params := "mode=" + o.mode + "|" + p.Params()
	if o.mode == ModeTrade {
		return params + "|ref=" + string(o.ref)
	}
	b := o.base
	return params + fmt.Sprintf("|capital=%s|positions=%d|alloc=%s|risk=%s|min=%s|fee=%s|slip=%s",
		formatFloat(b.InitialCapital), b.MaxConcurrentPositions,
		formatFloat(b.MaxAllocationPct), formatFloat(b.MaxRiskPerTrade),
		formatFloat(b.MinExecutableSize),
		formatFloat(b.Costs.TakerFeeBps), formatFloat(b.Costs.SlippageBps))
}

func (o *Optimizer) scoreTrades(ctx context.Context, p Point) (domain.TrialMetrics, error) {
	entry, err := strategy.EntryFromConfig(p.Entry)
	if err != nil {
		return domain.TrialMetrics{}, err
	}
	exit, err := strategy.ExitFromConfig(p.ExitConfig())
	if err != nil {
		return domain.TrialMetrics{}, err
	}
	configID := strategy.ConfigID(entry, exit, o.ref)

	results, err := simulation.ParallelMap(ctx, o.workers, o.jobs, func(_ context.Context, j simulation.Job) (*domain.TradeResult, error) {
		return simulation.SimulateJob(j, entry, exit, o.ref, configID)
	})
	if err != nil {
		return domain.TrialMetrics{}, err
	}
	return metrics.FromTradeResults(results), nil
}

func (o *Optimizer) scorePortfolio(ctx context.Context, p Point) (domain.TrialMetrics, error) {
	cfg := o.base
	cfg.TPMult = p.TPMult
	cfg.SLMult = p.SLMult
	cfg.IntrabarOrder = p.Order
	cfg.MaxHoldMs = p.MaxHoldMs

	sim, err := portfolio.New(portfolio.Options{Config: cfg, Logger: o.logger, Workers: o.workers})
	if err != nil {
		return domain.TrialMetrics{}, err
	}
	res, err := sim.Run(ctx, o.jobs)
	if err != nil {
		return domain.TrialMetrics{}, err
	}
	return metrics.FromPortfolio(res.Trades, res.Summary), nil
}

// Fingerprint hashes the alerts and window candles of a job set.
// Two job sets with the same logical content share a fingerprint.
func Fingerprint(jobs []simulation.Job) string {
	h := sha256.New()
	buf := make([]byte, 8)
	writeInt := func(v int64) {
		binary.BigEndian.PutUint64(buf, uint64(v))
		h.Write(buf)
	}
	writeFloat := func(v float64) {
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}

	for _, j := range jobs {
		h.Write([]byte(j.Alert.AlertID))
		writeInt(j.Alert.TimestampMs)
		writeInt(j.Window.EntryTimeMs)
		writeInt(j.Window.EndTimeMs)
		writeInt(int64(len(j.Window.Candles)))
		for _, c := range j.Window.Candles {
			writeInt(c.TimestampMs)
			writeFloat(c.Open)
			writeFloat(c.High)
			writeFloat(c.Low)
			writeFloat(c.Close)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
