package strategy

import (
	"fmt"
	"strings"

	"alert-backtest-lab/internal/domain"
)

// phaseState is the exit state machine carried between candles.
type phaseState struct {
	index  int     // current phase
	stop   float64 // stop price in force for the next candle
	anchor float64 // static stop base
	peak   float64 // highest high since entry, floored at the reference price
}

// advanceFunc moves the state past a candle that did not close the position.
type advanceFunc func(st phaseState, phases []domain.Phase, ref float64, c *domain.Candle) phaseState

// phasedWalk is the fold shared by static and trailing phased exits.
type phasedWalk struct {
	phases        []domain.Phase
	maxDurationMs int64
	order         domain.IntrabarOrder
	advance       advanceFunc
}

func (w *phasedWalk) run(input *ExitInput) *domain.ExitOutcome {
	if len(input.Candles) == 0 {
		return noData(input)
	}

	ref := input.ReferencePrice
	st := phaseState{
		stop:   ref * (1 - w.phases[0].StopPct),
		anchor: ref,
		peak:   ref,
	}
	tracker := newPathTracker(input)

	for _, c := range input.Candles {
		tracker.observe(c)
		var out *domain.ExitOutcome
		st, out = w.step(st, c, input, tracker)
		if out != nil {
			return out
		}
	}
	return tracker.endOfData(input.Candles)
}

// step checks exits against the state in force at candle open, then advances it.
// Targets are strictly increasing, so a High at the final target has passed every
// intermediate phase on the same candle.
func (w *phasedWalk) step(st phaseState, c *domain.Candle, input *ExitInput, tracker *pathTracker) (phaseState, *domain.ExitOutcome) {
	var hitTP bool
	var tpPrice float64
	if final := w.phases[len(w.phases)-1].TargetMultiple; final != nil {
		tpPrice = input.ReferencePrice * *final
		hitTP = c.High >= tpPrice
	}
	hitSL := c.Low <= st.stop

	switch ResolveIntrabar(hitTP, hitSL, w.order) {
	case TouchTP:
		return st, tracker.exit(tpPrice, c, domain.ExitReasonTakeProfit)
	case TouchSL:
		return st, tracker.exit(stopFill(st.stop, c), c, domain.ExitReasonStopLoss)
	}

	if c.TimestampMs-input.EntryTimeMs >= w.maxDurationMs {
		return st, tracker.exit(c.Close, c, domain.ExitReasonTimeExit)
	}

	return w.advance(st, w.phases, input.ReferencePrice, c), nil
}

// stopFill is the stop price, or the open when the candle gapped below it.
func stopFill(stop float64, c *domain.Candle) float64 {
	if c.Open < stop {
		return c.Open
	}
	return stop
}

// StaticPhasedExit holds a fixed stop per phase, re-anchored at each reached target.
type StaticPhasedExit struct {
	Phases        []domain.Phase
	MaxDurationMs int64
	Order         domain.IntrabarOrder
}

// NewStaticPhasedExit creates a new StaticPhasedExit.
func NewStaticPhasedExit(phases []domain.Phase, maxDurationMs int64, order domain.IntrabarOrder) *StaticPhasedExit {
	return &StaticPhasedExit{Phases: phases, MaxDurationMs: maxDurationMs, Order: order}
}

// ID returns the strategy identifier including parameters.
func (s *StaticPhasedExit) ID() string {
	return fmt.Sprintf("%s_%s_%dms_%s", domain.ExitTypeStaticPhased, phasesID(s.Phases), s.MaxDurationMs, s.Order)
}

// Exit runs the static phase machine over the candles.
func (s *StaticPhasedExit) Exit(input *ExitInput) *domain.ExitOutcome {
	w := &phasedWalk{phases: s.Phases, maxDurationMs: s.MaxDurationMs, order: s.Order, advance: advanceStatic}
	return w.run(input)
}

func advanceStatic(st phaseState, phases []domain.Phase, ref float64, c *domain.Candle) phaseState {
	if c.High > st.peak {
		st.peak = c.High
	}
	for st.index < len(phases)-1 {
		target := phases[st.index].TargetMultiple
		if target == nil || c.High < ref**target {
			break
		}
		st.anchor = ref * *target
		st.index++
		st.stop = st.anchor * (1 - phases[st.index].StopPct)
	}
	return st
}

// phasesID renders phases as "s10-t2,s20" (stop pct, optional target multiple).
func phasesID(phases []domain.Phase) string {
	parts := make([]string, len(phases))
	for i, p := range phases {
		part := fmt.Sprintf("s%g", p.StopPct*100)
		if p.TargetMultiple != nil {
			part += fmt.Sprintf("-t%g", *p.TargetMultiple)
		}
		parts[i] = part
	}
	return strings.Join(parts, ",")
}

var _ ExitStrategy = (*StaticPhasedExit)(nil)
