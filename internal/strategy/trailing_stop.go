package strategy

import (
	"fmt"

	"alert-backtest-lab/internal/domain"
)

// TrailingPhasedExit trails the stop below the running peak with a per-phase distance.
// The stop only ratchets up.
type TrailingPhasedExit struct {
	Phases        []domain.Phase
	MaxDurationMs int64
	Order         domain.IntrabarOrder
}

// NewTrailingPhasedExit creates a new TrailingPhasedExit.
func NewTrailingPhasedExit(phases []domain.Phase, maxDurationMs int64, order domain.IntrabarOrder) *TrailingPhasedExit {
	return &TrailingPhasedExit{Phases: phases, MaxDurationMs: maxDurationMs, Order: order}
}

// ID returns the strategy identifier including parameters.
func (s *TrailingPhasedExit) ID() string {
	return fmt.Sprintf("%s_%s_%dms_%s", domain.ExitTypeTrailingPhased, phasesID(s.Phases), s.MaxDurationMs, s.Order)
}

// Exit runs the trailing phase machine over the candles.
func (s *TrailingPhasedExit) Exit(input *ExitInput) *domain.ExitOutcome {
	w := &phasedWalk{phases: s.Phases, maxDurationMs: s.MaxDurationMs, order: s.Order, advance: advanceTrailing}
	return w.run(input)
}

func advanceTrailing(st phaseState, phases []domain.Phase, ref float64, c *domain.Candle) phaseState {
	if c.High > st.peak {
		st.peak = c.High
	}
	for st.index < len(phases)-1 {
		target := phases[st.index].TargetMultiple
		if target == nil || st.peak < ref**target {
			break
		}
		st.index++
	}
	if trail := st.peak * (1 - phases[st.index].StopPct); trail > st.stop {
		st.stop = trail
	}
	return st
}

var _ ExitStrategy = (*TrailingPhasedExit)(nil)
