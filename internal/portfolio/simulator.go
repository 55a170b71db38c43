package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/observability"
	"alert-backtest-lab/internal/simulation"
	"alert-backtest-lab/internal/strategy"
)

// Portfolio configuration errors
var (
	ErrInvalidCapital      = errors.New("initial capital must be positive")
	ErrInvalidMaxPositions = errors.New("max concurrent positions must be positive")
	ErrInvalidAllocation   = errors.New("max allocation pct must be in (0, 1]")
	ErrInvalidRisk         = errors.New("max risk per trade must be in (0, 1]")
	ErrInvalidMinSize      = errors.New("min executable size must be >= 0")
	ErrInvalidCosts        = errors.New("fee and slippage bps must be >= 0")
	ErrInvalidMaxHold      = errors.New("max hold must be >= 0")
	ErrInvalidCandidate    = errors.New("executed candidate needs a positive entry price and exit multiple")
)

var (
	one        = decimal.NewFromInt(1)
	bpsDivisor = decimal.NewFromInt(10_000)
)

// ValidateConfig rejects configurations the replay cannot honor.
func ValidateConfig(cfg domain.PortfolioConfig) error {
	switch {
	case cfg.InitialCapital <= 0:
		return ErrInvalidCapital
	case cfg.MaxConcurrentPositions <= 0:
		return ErrInvalidMaxPositions
	case cfg.MaxAllocationPct <= 0 || cfg.MaxAllocationPct > 1:
		return ErrInvalidAllocation
	case cfg.MaxRiskPerTrade <= 0 || cfg.MaxRiskPerTrade > 1:
		return ErrInvalidRisk
	case cfg.MinExecutableSize < 0:
		return ErrInvalidMinSize
	case cfg.Costs.TakerFeeBps < 0 || cfg.Costs.SlippageBps < 0:
		return ErrInvalidCosts
	case cfg.MaxHoldMs < 0:
		return ErrInvalidMaxHold
	}
	if _, err := strategy.ExitFromConfig(ExitConfig(cfg)); err != nil {
		return fmt.Errorf("exit config: %w", err)
	}
	return nil
}

// ExitConfig is the TP/SL exit every portfolio position uses.
// A zero MaxHoldMs leaves the hold uncapped.
func ExitConfig(cfg domain.PortfolioConfig) domain.ExitConfig {
	tp, sl := cfg.TPMult, cfg.SLMult
	exit := domain.ExitConfig{
		ExitType:      domain.ExitTypeTakeProfitStop,
		TPMult:        &tp,
		SLMult:        &sl,
		IntrabarOrder: cfg.IntrabarOrder,
	}
	if cfg.MaxHoldMs > 0 {
		hold := cfg.MaxHoldMs
		exit.MaxDurationMs = &hold
	}
	return exit
}

// Candidate is the precomputed, immutable outcome of one alert.
type Candidate struct {
	AlertID      string
	Token        string
	Caller       string
	AlertTimeMs  int64
	EntryTimeMs  int64 // aligned window start; replay order key
	Occurred     bool
	MissedReason string
	EntryPrice   float64
	ExitTimeMs   int64
	ExitMultiple float64
	ExitReason   string
}

func candidateFromResult(j simulation.Job, res *domain.TradeResult) Candidate {
	c := Candidate{
		AlertID:     res.AlertID,
		Token:       res.Token,
		Caller:      res.Caller,
		AlertTimeMs: j.Alert.TimestampMs,
		EntryTimeMs: j.Window.EntryTimeMs,
	}
	if res.Exit == nil {
		c.MissedReason = res.Entry.MissedReason
		return c
	}
	c.Occurred = true
	c.EntryPrice = res.Entry.Price
	c.ExitTimeMs = res.Exit.TimestampMs
	c.ExitMultiple = *res.ExitMultipleFromEntry
	c.ExitReason = res.Exit.Reason
	return c
}

// Result is the outcome of one replay.
type Result struct {
	Summary domain.PortfolioSummary
	Trades  []domain.PortfolioTrade // replay order, skipped alerts included
}

// Replay folds candidates into a capital ledger in non-decreasing entry time.
// Equal entry times keep their input order. Candidates are validated before
// the ledger is created, so a bad input never leaves a partial replay.
func Replay(candidates []Candidate, cfg domain.PortfolioConfig) (*Result, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.Occurred && (c.EntryPrice <= 0 || c.ExitMultiple <= 0 || c.ExitTimeMs < c.EntryTimeMs) {
			return nil, fmt.Errorf("%w: alert %s", ErrInvalidCandidate, c.AlertID)
		}
	}

	order := make([]Candidate, len(candidates))
	copy(order, candidates)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].EntryTimeMs < order[j].EntryTimeMs
	})

	initial := decimal.NewFromFloat(cfg.InitialCapital)
	alloc := decimal.NewFromFloat(cfg.MaxAllocationPct)
	riskFactor := decimal.NewFromFloat(cfg.MaxRiskPerTrade).Div(one.Sub(decimal.NewFromFloat(cfg.SLMult)))
	minSize := decimal.NewFromFloat(cfg.MinExecutableSize)
	costRate := decimal.NewFromFloat(cfg.Costs.TakerFeeBps).
		Add(decimal.NewFromFloat(cfg.Costs.SlippageBps)).
		Mul(decimal.NewFromInt(2)).
		Div(bpsDivisor)

	ledger := NewLedger(initial)
	trades := make([]domain.PortfolioTrade, 0, len(order))
	executed, wins := 0, 0

	for _, c := range order {
		ledger.ReleaseUntil(c.EntryTimeMs)

		trade := domain.PortfolioTrade{
			AlertID:     c.AlertID,
			Token:       c.Token,
			Caller:      c.Caller,
			AlertTimeMs: c.AlertTimeMs,
		}

		if !c.Occurred {
			trade.SkipReason = domain.SkipReasonNoEntry
			trades = append(trades, trade)
			continue
		}
		if ledger.OpenCount() >= cfg.MaxConcurrentPositions {
			trade.SkipReason = domain.SkipReasonCapacity
			trades = append(trades, trade)
			continue
		}

		capital := ledger.Capital()
		size := decimal.Min(capital.Mul(alloc), capital.Mul(riskFactor), capital)
		if !size.IsPositive() || size.LessThan(minSize) {
			trade.SkipReason = domain.SkipReasonUndersized
			trades = append(trades, trade)
			continue
		}

		fees := size.Mul(costRate)
		pnl := size.Mul(decimal.NewFromFloat(c.ExitMultiple).Sub(one)).Sub(fees)

		ledger.Reserve(domain.Position{
			AlertID:      c.AlertID,
			Token:        c.Token,
			Size:         size.InexactFloat64(),
			EntryPrice:   c.EntryPrice,
			EntryTimeMs:  c.EntryTimeMs,
			ExitTimeMs:   c.ExitTimeMs,
			StopPrice:    c.EntryPrice * cfg.SLMult,
			TargetPrice:  c.EntryPrice * cfg.TPMult,
			ExitMultiple: c.ExitMultiple,
			Open:         true,
		}, size, pnl)

		trade.Executed = true
		trade.Size = size.InexactFloat64()
		trade.EntryPrice = c.EntryPrice
		trade.EntryTimeMs = c.EntryTimeMs
		trade.ExitTimeMs = c.ExitTimeMs
		trade.ExitMultiple = c.ExitMultiple
		trade.ExitReason = c.ExitReason
		trade.Fees = fees.InexactFloat64()
		trade.PnL = pnl.InexactFloat64()
		trade.CapitalAfter = ledger.Capital().InexactFloat64()
		trades = append(trades, trade)

		executed++
		if pnl.IsPositive() {
			wins++
		}
	}

	ledger.ReleaseAll()

	final := ledger.Capital()
	summary := domain.PortfolioSummary{
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   final.InexactFloat64(),
		TotalReturnPct: final.Sub(initial).Div(initial).Mul(hundred).InexactFloat64(),
		MaxDrawdownPct: ledger.MaxDrawdownPct().InexactFloat64(),
		TradesExecuted: executed,
		TradesSkipped:  len(trades) - executed,
	}
	if executed > 0 {
		summary.WinRate = float64(wins) / float64(executed)
	}

	return &Result{Summary: summary, Trades: trades}, nil
}

// Simulator precomputes exits in parallel and replays them through the ledger.
type Simulator struct {
	cfg     domain.PortfolioConfig
	exit    strategy.ExitStrategy
	logger  *zap.Logger
	workers int
}

// Options contains configuration for creating a Simulator.
type Options struct {
	Config  domain.PortfolioConfig
	Logger  *zap.Logger
	Workers int // <= 0 uses runtime.NumCPU()
}

// New creates a portfolio simulator. The config is validated up front.
func New(opts Options) (*Simulator, error) {
	if err := ValidateConfig(opts.Config); err != nil {
		return nil, err
	}
	exit, err := strategy.ExitFromConfig(ExitConfig(opts.Config))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Simulator{
		cfg:     opts.Config,
		exit:    exit,
		logger:  logger,
		workers: opts.Workers,
	}, nil
}

// Precompute runs immediate-entry TP/SL trades for every job in parallel.
// Stops and targets are anchored to the entry price.
func (s *Simulator) Precompute(ctx context.Context, jobs []simulation.Job) ([]Candidate, error) {
	entry := strategy.NewImmediateEntry()
	configID := strategy.ConfigID(entry, s.exit, domain.StopReferenceEntry)

	return simulation.ParallelMap(ctx, s.workers, jobs, func(_ context.Context, j simulation.Job) (Candidate, error) {
		res, err := simulation.SimulateJob(j, entry, s.exit, domain.StopReferenceEntry, configID)
		if err != nil {
			return Candidate{}, err
		}
		return candidateFromResult(j, res), nil
	})
}

// Run precomputes and replays jobs, tagging the summary with a fresh run id.
func (s *Simulator) Run(ctx context.Context, jobs []simulation.Job) (*Result, error) {
	start := time.Now()

	candidates, err := s.Precompute(ctx, jobs)
	if err != nil {
		s.finish(start, err)
		return nil, fmt.Errorf("precompute: %w", err)
	}

	res, err := Replay(candidates, s.cfg)
	if err != nil {
		s.finish(start, err)
		return nil, err
	}
	res.Summary.RunID = uuid.NewString()

	for _, t := range res.Trades {
		if t.Executed {
			observability.RecordPortfolioTrade(t.PnL > 0)
		} else {
			observability.RecordPortfolioSkip(t.SkipReason)
		}
	}

	s.logger.Info("portfolio replay complete",
		zap.String("run_id", res.Summary.RunID),
		zap.Int("alerts", len(jobs)),
		zap.Int("executed", res.Summary.TradesExecuted),
		zap.Int("skipped", res.Summary.TradesSkipped),
		zap.Float64("final_capital", res.Summary.FinalCapital),
		zap.Float64("max_drawdown_pct", res.Summary.MaxDrawdownPct),
	)
	s.finish(start, nil)
	return res, nil
}

func (s *Simulator) finish(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		s.logger.Error("portfolio replay failed", zap.Error(err))
	}
	observability.RecordRun("portfolio", status, time.Since(start).Seconds())
}
