package window

import (
	"alert-backtest-lab/internal/domain"
)

// Status classifies a window: missing below two candles, bad_entry when the first open is not positive.
func Status(w Window) domain.PathStatus {
	if len(w.Candles) < 2 {
		return domain.PathStatusMissing
	}
	if w.Candles[0].Open <= 0 {
		return domain.PathStatusBadEntry
	}
	return domain.PathStatusOK
}

// ComputePathMetrics summarizes the price path of a window relative to its first open.
// Data problems are reported through Status, never as errors.
func ComputePathMetrics(alert *domain.Alert, w Window) *domain.PathMetrics {
	m := &domain.PathMetrics{
		AlertID:     alert.AlertID,
		Token:       alert.Token,
		Caller:      alert.Caller,
		AlertTimeMs: alert.TimestampMs,
		EntryTimeMs: w.EntryTimeMs,
		Candles:     len(w.Candles),
	}

	m.Status = Status(w)
	if m.Status != domain.PathStatusOK {
		return m
	}

	entry := w.Candles[0].Open
	m.EntryPrice = entry

	candles := w.Candles

	// ATH
	athPrice := entry
	athIdx := 0
	for i, c := range candles {
		if c.High > athPrice {
			athPrice = c.High
			athIdx = i
		}
	}
	m.ATHMultiple = athPrice / entry
	m.ATHTimeMs = candles[athIdx].TimestampMs

	// Milestone indexes
	idx2 := firstReach(candles, 2*entry)
	idx3 := firstReach(candles, 3*entry)
	idx4 := firstReach(candles, 4*entry)
	m.TimeTo2xSec = secondsSince(candles, idx2, w.EntryTimeMs)
	m.TimeTo3xSec = secondsSince(candles, idx3, w.EntryTimeMs)
	m.TimeTo4xSec = secondsSince(candles, idx4, w.EntryTimeMs)

	// Drawdowns
	firstAbove := len(candles) - 1
	for i, c := range candles {
		if c.High > entry {
			firstAbove = i
			break
		}
	}
	m.Drawdowns.Initial = pct(minLow(candles[:firstAbove+1]), entry)
	m.Drawdowns.Overall = maxDrawdown(candles, entry)

	if idx2 >= 0 {
		m.Drawdowns.Pre2x = ptr(pct(minLow(candles[:idx2]), entry))
		m.Drawdowns.Post2x = ptr(postMilestoneDrawdown(candles, idx2, 2*entry))
	}
	if idx3 >= 0 {
		m.Drawdowns.Pre3x = ptr(pct(minLow(candles[:idx3]), entry))
		m.Drawdowns.Post3x = ptr(postMilestoneDrawdown(candles, idx3, 3*entry))
	}
	if idx4 >= 0 {
		m.Drawdowns.Pre4x = ptr(pct(minLow(candles[:idx4]), entry))
		m.Drawdowns.Post4x = ptr(postMilestoneDrawdown(candles, idx4, 4*entry))
	}
	if athIdx < len(candles)-1 {
		m.Drawdowns.PostATH = ptr(pct(minLow(candles[athIdx+1:]), athPrice))
	}

	return m
}

// firstReach returns the index of the first candle whose high reaches level, or -1.
func firstReach(candles []*domain.Candle, level float64) int {
	for i, c := range candles {
		if c.High >= level {
			return i
		}
	}
	return -1
}

func secondsSince(candles []*domain.Candle, idx int, startMs int64) *float64 {
	if idx < 0 {
		return nil
	}
	return ptr(float64(candles[idx].TimestampMs-startMs) / 1000)
}

// minLow returns the lowest low, or 0 for an empty slice.
func minLow(candles []*domain.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	low := candles[0].Low
	for _, c := range candles[1:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}

// pct returns (price/ref - 1) * 100 clamped to <= 0. A zero price means "no candles".
func pct(price, ref float64) float64 {
	if price == 0 || price >= ref {
		return 0
	}
	return (price/ref - 1) * 100
}

// maxDrawdown returns the worst low against the running peak of prior highs, in percent.
// The peak is updated after the low check so a bar never draws down from its own high.
func maxDrawdown(candles []*domain.Candle, start float64) float64 {
	peak := start
	worst := 0.0
	for _, c := range candles {
		if dd := pct(c.Low, peak); dd < worst {
			worst = dd
		}
		if c.High > peak {
			peak = c.High
		}
	}
	return worst
}

// postMilestoneDrawdown measures drawdown after the milestone candle at idx.
func postMilestoneDrawdown(candles []*domain.Candle, idx int, level float64) float64 {
	peak := level
	if candles[idx].High > peak {
		peak = candles[idx].High
	}
	return maxDrawdown(candles[idx+1:], peak)
}

func ptr(v float64) *float64 {
	return &v
}
