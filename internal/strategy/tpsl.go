package strategy

import (
	"fmt"

	"alert-backtest-lab/internal/domain"
)

// TakeProfitStopExit exits at fixed multiples of the reference price.
type TakeProfitStopExit struct {
	TPMult        float64 // > 1
	SLMult        float64 // in (0, 1)
	MaxDurationMs int64   // 0 holds until the window ends
	Order         domain.IntrabarOrder
}

// NewTakeProfitStopExit creates a new TakeProfitStopExit.
func NewTakeProfitStopExit(tpMult, slMult float64, maxDurationMs int64, order domain.IntrabarOrder) *TakeProfitStopExit {
	return &TakeProfitStopExit{TPMult: tpMult, SLMult: slMult, MaxDurationMs: maxDurationMs, Order: order}
}

// ID returns the strategy identifier including parameters.
func (s *TakeProfitStopExit) ID() string {
	return fmt.Sprintf("%s_tp%g_sl%g_%dms_%s", domain.ExitTypeTakeProfitStop, s.TPMult, s.SLMult, s.MaxDurationMs, s.Order)
}

// Exit walks candles until the target, the stop or the hold cap is hit.
func (s *TakeProfitStopExit) Exit(input *ExitInput) *domain.ExitOutcome {
	if len(input.Candles) == 0 {
		return noData(input)
	}

	tp := input.ReferencePrice * s.TPMult
	sl := input.ReferencePrice * s.SLMult
	tracker := newPathTracker(input)

	for _, c := range input.Candles {
		tracker.observe(c)

		switch ResolveIntrabar(c.High >= tp, c.Low <= sl, s.Order) {
		case TouchTP:
			return tracker.exit(tp, c, domain.ExitReasonTakeProfit)
		case TouchSL:
			return tracker.exit(sl, c, domain.ExitReasonStopLoss)
		}

		if s.MaxDurationMs > 0 && c.TimestampMs-input.EntryTimeMs >= s.MaxDurationMs {
			return tracker.exit(c.Close, c, domain.ExitReasonTimeExit)
		}
	}
	return tracker.endOfData(input.Candles)
}

var _ ExitStrategy = (*TakeProfitStopExit)(nil)
