package strategy

import (
	"testing"

	"alert-backtest-lab/internal/domain"
)

func f64(v float64) *float64 { return &v }

func exitInput(candles []*domain.Candle) *ExitInput {
	return &ExitInput{
		Candles:        candles,
		EntryPrice:     1.0,
		EntryTimeMs:    t0,
		ReferencePrice: 1.0,
	}
}

func TestTakeProfitStop_IntrabarOrder(t *testing.T) {
	// One candle crosses both levels.
	candles := []*domain.Candle{bar(1, minuteMs, 1.0, 2.1, 0.4, 1.0)}

	tests := []struct {
		order      domain.IntrabarOrder
		wantPrice  float64
		wantReason string
		wantReturn float64
	}{
		{domain.IntrabarTPFirst, 2.0, domain.ExitReasonTakeProfit, 1.0},
		{domain.IntrabarSLFirst, 0.5, domain.ExitReasonStopLoss, -0.5},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			out := NewTakeProfitStopExit(2.0, 0.5, 0, tt.order).Exit(exitInput(candles))
			if out.Reason != tt.wantReason || !approxEqual(out.Price, tt.wantPrice) {
				t.Fatalf("expected %s at %f, got %s at %f", tt.wantReason, tt.wantPrice, out.Reason, out.Price)
			}
			if ret := out.Price/1.0 - 1; !approxEqual(ret, tt.wantReturn) {
				t.Errorf("expected return %f, got %f", tt.wantReturn, ret)
			}
		})
	}
}

func TestTakeProfitStop_NoDataAndEndOfData(t *testing.T) {
	s := NewTakeProfitStopExit(2.0, 0.5, 0, domain.IntrabarTPFirst)

	out := s.Exit(exitInput(nil))
	if out.Reason != domain.ExitReasonNoData || out.Price != 1.0 || out.TimestampMs != t0 {
		t.Errorf("expected no_data at entry, got %+v", out)
	}

	candles := []*domain.Candle{
		bar(1, minuteMs, 1.0, 1.2, 0.9, 1.1),
		bar(2, minuteMs, 1.1, 1.3, 1.0, 1.15),
	}
	out = s.Exit(exitInput(candles))
	if out.Reason != domain.ExitReasonEndOfData || out.Price != 1.15 || out.TimestampMs != candles[1].TimestampMs {
		t.Errorf("expected end_of_data at last close, got %+v", out)
	}
	if !approxEqual(out.PeakMultiple, 1.3) {
		t.Errorf("expected peak 1.3, got %f", out.PeakMultiple)
	}
}

func TestTakeProfitStop_TimeExit(t *testing.T) {
	var candles []*domain.Candle
	for i := 1; i <= 5; i++ {
		candles = append(candles, bar(i, minuteMs, 1.0, 1.1, 0.9, 1.0+float64(i)/100))
	}

	out := NewTakeProfitStopExit(2.0, 0.5, 3*minuteMs, domain.IntrabarTPFirst).Exit(exitInput(candles))
	if out.Reason != domain.ExitReasonTimeExit {
		t.Fatalf("expected time_exit, got %s", out.Reason)
	}
	if out.TimestampMs != t0+3*minuteMs || !approxEqual(out.Price, 1.03) {
		t.Errorf("expected exit at close of the 3-minute candle, got ts=%d price=%f", out.TimestampMs, out.Price)
	}
}

func TestExit_PeakATHAndMilestones(t *testing.T) {
	candles := []*domain.Candle{
		bar(1, minuteMs, 1.0, 1.5, 1.0, 1.4),
		bar(2, minuteMs, 1.4, 2.5, 1.2, 2.0),
		bar(3, minuteMs, 2.0, 3.2, 1.5, 2.0),
		bar(4, minuteMs, 2.0, 2.0, 0.4, 0.6), // stop
		bar(5, minuteMs, 5.0, 12.0, 5.0, 11.0),
	}

	out := NewTakeProfitStopExit(20, 0.5, 0, domain.IntrabarTPFirst).Exit(exitInput(candles))

	if out.Reason != domain.ExitReasonStopLoss || out.Price != 0.5 {
		t.Fatalf("expected stop_loss at 0.5, got %s at %f", out.Reason, out.Price)
	}
	if !approxEqual(out.PeakMultiple, 3.2) {
		t.Errorf("peak multiple must stop at the exit candle, got %f", out.PeakMultiple)
	}
	if !approxEqual(out.ATHMultiple, 12.0) {
		t.Errorf("ATH multiple must cover all candles, got %f", out.ATHMultiple)
	}
	want := domain.Milestones{Hit2x: true, Hit3x: true}
	if out.Milestones != want {
		t.Errorf("expected milestones %+v, got %+v", want, out.Milestones)
	}
}

func twoPhases() []domain.Phase {
	return []domain.Phase{
		{StopPct: 0.1, TargetMultiple: f64(2)},
		{StopPct: 0.2},
	}
}

func phasedCandles() []*domain.Candle {
	return []*domain.Candle{
		bar(1, minuteMs, 1.0, 1.5, 0.95, 1.4),
		bar(2, minuteMs, 1.4, 2.2, 1.6, 2.0),
		bar(3, minuteMs, 2.0, 2.1, 1.7, 1.9),
		bar(4, minuteMs, 1.9, 2.0, 1.5, 1.6),
	}
}

func TestStaticPhasedExit(t *testing.T) {
	out := NewStaticPhasedExit(twoPhases(), hourMs, domain.IntrabarSLFirst).Exit(exitInput(phasedCandles()))

	// Phase 1 anchors at 2.0, stop 1.6, untouched until the fourth candle.
	if out.Reason != domain.ExitReasonStopLoss {
		t.Fatalf("expected stop_loss, got %s", out.Reason)
	}
	if !approxEqual(out.Price, 1.6) {
		t.Errorf("expected stop at 1.6, got %f", out.Price)
	}
	if out.TimestampMs != t0+4*minuteMs {
		t.Errorf("expected exit on fourth candle, got %d", out.TimestampMs)
	}
}

func TestTrailingPhasedExit(t *testing.T) {
	out := NewTrailingPhasedExit(twoPhases(), hourMs, domain.IntrabarSLFirst).Exit(exitInput(phasedCandles()))

	// Peak 2.2 in phase 1 trails the stop to 1.76, hit by the third candle.
	if out.Reason != domain.ExitReasonStopLoss {
		t.Fatalf("expected stop_loss, got %s", out.Reason)
	}
	if !approxEqual(out.Price, 1.76) {
		t.Errorf("expected stop at 1.76, got %f", out.Price)
	}
	if out.TimestampMs != t0+3*minuteMs {
		t.Errorf("expected exit on third candle, got %d", out.TimestampMs)
	}
}

func TestTrailingPhasedExit_NeverLoosens(t *testing.T) {
	phases := []domain.Phase{
		{StopPct: 0.1, TargetMultiple: f64(2)},
		{StopPct: 0.5},
	}
	candles := []*domain.Candle{
		bar(1, minuteMs, 1.0, 1.9, 1.0, 1.8),
		bar(2, minuteMs, 1.8, 2.0, 1.8, 1.9),
		bar(3, minuteMs, 1.9, 1.9, 1.7, 1.7),
	}

	out := NewTrailingPhasedExit(phases, hourMs, domain.IntrabarSLFirst).Exit(exitInput(candles))
	if out.Reason != domain.ExitReasonStopLoss || !approxEqual(out.Price, 1.71) {
		t.Errorf("expected stop held at 1.71 after phase advance, got %s at %f", out.Reason, out.Price)
	}
}

func TestPhasedExit_FinalTargetTakesProfit(t *testing.T) {
	phases := []domain.Phase{
		{StopPct: 0.1, TargetMultiple: f64(2)},
		{StopPct: 0.2, TargetMultiple: f64(3)},
	}
	candles := []*domain.Candle{
		bar(1, minuteMs, 1.0, 2.0, 1.0, 1.9),
		bar(2, minuteMs, 1.9, 3.1, 1.7, 3.0),
	}

	for _, s := range []ExitStrategy{
		NewStaticPhasedExit(phases, hourMs, domain.IntrabarTPFirst),
		NewTrailingPhasedExit(phases, hourMs, domain.IntrabarTPFirst),
	} {
		out := s.Exit(exitInput(candles))
		if out.Reason != domain.ExitReasonTakeProfit || !approxEqual(out.Price, 3.0) {
			t.Errorf("%s: expected take_profit at 3.0, got %s at %f", s.ID(), out.Reason, out.Price)
		}
	}
}

func TestPhasedExit_StopCheckedBeforeAdvance(t *testing.T) {
	// Target reached and opening stop breached on the same candle.
	candles := []*domain.Candle{bar(1, minuteMs, 1.0, 2.5, 0.85, 2.0)}

	out := NewStaticPhasedExit(twoPhases(), hourMs, domain.IntrabarTPFirst).Exit(exitInput(candles))
	if out.Reason != domain.ExitReasonStopLoss || !approxEqual(out.Price, 0.9) {
		t.Errorf("expected stop_loss at opening stop 0.9, got %s at %f", out.Reason, out.Price)
	}
	if !out.Milestones.Hit2x {
		t.Errorf("milestones must include the exit candle")
	}
}

func TestPhasedExit_TimeExit(t *testing.T) {
	var candles []*domain.Candle
	for i := 1; i <= 5; i++ {
		candles = append(candles, bar(i, minuteMs, 1.0, 1.05, 0.95, 1.02))
	}

	out := NewStaticPhasedExit(twoPhases(), 2*minuteMs, domain.IntrabarTPFirst).Exit(exitInput(candles))
	if out.Reason != domain.ExitReasonTimeExit || out.TimestampMs != t0+2*minuteMs {
		t.Errorf("expected time_exit on second candle, got %s at %d", out.Reason, out.TimestampMs)
	}
}

func TestExit_ReferencePriceDiffersFromEntry(t *testing.T) {
	// Entry at 0.8 after a dip; levels stay anchored to the 1.0 reference.
	in := &ExitInput{
		Candles:        []*domain.Candle{bar(1, minuteMs, 0.8, 2.0, 0.8, 1.9)},
		EntryPrice:     0.8,
		EntryTimeMs:    t0,
		ReferencePrice: 1.0,
	}

	out := NewTakeProfitStopExit(2.0, 0.5, 0, domain.IntrabarTPFirst).Exit(in)
	if out.Reason != domain.ExitReasonTakeProfit || out.Price != 2.0 {
		t.Fatalf("expected take_profit at 2.0, got %s at %f", out.Reason, out.Price)
	}
	if !approxEqual(out.PeakMultiple, 2.5) {
		t.Errorf("peak multiple is relative to entry, got %f", out.PeakMultiple)
	}
}

func TestExit_Deterministic(t *testing.T) {
	s := NewTrailingPhasedExit(twoPhases(), hourMs, domain.IntrabarSLFirst)
	first := s.Exit(exitInput(phasedCandles()))
	for run := 0; run < 5; run++ {
		got := s.Exit(exitInput(phasedCandles()))
		if *got != *first {
			t.Fatalf("run %d: output differs: %+v vs %+v", run, got, first)
		}
	}
}

func TestPhasedExit_FinalTargetOnGapCandle(t *testing.T) {
	// The first candle runs through both targets; the pullback must not matter.
	phases := []domain.Phase{
		{StopPct: 0.1, TargetMultiple: f64(2)},
		{StopPct: 0.2, TargetMultiple: f64(3)},
	}
	candles := []*domain.Candle{
		bar(1, minuteMs, 1.0, 3.5, 1.0, 3.2),
		bar(2, minuteMs, 2.4, 2.5, 1.5, 1.6),
	}

	for _, s := range []ExitStrategy{
		NewStaticPhasedExit(phases, hourMs, domain.IntrabarSLFirst),
		NewTrailingPhasedExit(phases, hourMs, domain.IntrabarSLFirst),
	} {
		out := s.Exit(exitInput(candles))
		if out.Reason != domain.ExitReasonTakeProfit || !approxEqual(out.Price, 3.0) {
			t.Errorf("%s: expected take_profit at 3.0, got %s at %f", s.ID(), out.Reason, out.Price)
		}
		if out.TimestampMs != t0+minuteMs {
			t.Errorf("%s: expected exit on first candle, got %d", s.ID(), out.TimestampMs)
		}
	}
}

func TestPhasedExit_FinalTargetTiesOpeningStop(t *testing.T) {
	phases := []domain.Phase{
		{StopPct: 0.1, TargetMultiple: f64(2)},
		{StopPct: 0.2, TargetMultiple: f64(3)},
	}
	candles := []*domain.Candle{bar(1, minuteMs, 1.0, 3.5, 0.85, 3.0)}

	tests := []struct {
		order      domain.IntrabarOrder
		wantReason string
		wantPrice  float64
	}{
		{domain.IntrabarTPFirst, domain.ExitReasonTakeProfit, 3.0},
		{domain.IntrabarSLFirst, domain.ExitReasonStopLoss, 0.9},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			out := NewStaticPhasedExit(phases, hourMs, tt.order).Exit(exitInput(candles))
			if out.Reason != tt.wantReason || !approxEqual(out.Price, tt.wantPrice) {
				t.Errorf("expected %s at %f, got %s at %f", tt.wantReason, tt.wantPrice, out.Reason, out.Price)
			}
		})
	}
}

func TestPhasedExit_GapDownFillsAtOpen(t *testing.T) {
	candles := []*domain.Candle{
		bar(1, minuteMs, 1.0, 2.2, 1.0, 2.0),
		bar(2, minuteMs, 1.2, 1.3, 1.1, 1.2),
	}

	// Phase 1 stop sits at 1.6; the second candle opens below it.
	out := NewStaticPhasedExit(twoPhases(), hourMs, domain.IntrabarSLFirst).Exit(exitInput(candles))
	if out.Reason != domain.ExitReasonStopLoss || !approxEqual(out.Price, 1.2) {
		t.Errorf("expected stop_loss at the 1.2 open, got %s at %f", out.Reason, out.Price)
	}
}
