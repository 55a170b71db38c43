package strategy

import (
	"fmt"
	"strconv"

	"alert-backtest-lab/internal/domain"
)

// ImmediateEntry opens at the alert price without consuming a candle.
type ImmediateEntry struct{}

// NewImmediateEntry creates a new ImmediateEntry.
func NewImmediateEntry() *ImmediateEntry {
	return &ImmediateEntry{}
}

// ID returns the strategy identifier.
func (s *ImmediateEntry) ID() string {
	return domain.EntryTypeImmediate
}

// Enter fills at the alert price at the alert time.
func (s *ImmediateEntry) Enter(input *EntryInput) *domain.EntryOutcome {
	return &domain.EntryOutcome{
		Occurred:    true,
		Price:       input.AlertPrice,
		TimestampMs: input.AlertTimeMs,
		Remaining:   input.Candles,
	}
}

// DipWaitEntry waits for price to trade down to a fixed fraction below the alert price.
// The fill is the exact target, as with a resting limit order.
type DipWaitEntry struct {
	TargetDropPct float64 // negative, e.g. -0.2
	MaxWaitMs     *int64  // nil waits for the whole window
}

// NewDipWaitEntry creates a new DipWaitEntry.
func NewDipWaitEntry(targetDropPct float64, maxWaitMs *int64) *DipWaitEntry {
	return &DipWaitEntry{TargetDropPct: targetDropPct, MaxWaitMs: maxWaitMs}
}

// ID returns the strategy identifier including parameters.
func (s *DipWaitEntry) ID() string {
	return fmt.Sprintf("%s_%.0fpct%s", domain.EntryTypeDipWait, s.TargetDropPct*100, waitSuffix(s.MaxWaitMs))
}

// Enter fires on the first candle whose low reaches alert*(1+TargetDropPct).
func (s *DipWaitEntry) Enter(input *EntryInput) *domain.EntryOutcome {
	if len(input.Candles) == 0 {
		return missed(domain.MissedNoCandles)
	}

	target := input.AlertPrice * (1 + s.TargetDropPct)
	for i, c := range input.Candles {
		if timedOut(c, input.AlertTimeMs, s.MaxWaitMs) {
			return missed(timeoutReason(*s.MaxWaitMs))
		}
		if c.Low <= target {
			return filled(input, i, target)
		}
	}
	return missed(domain.MissedDipNeverOccurred)
}

// TimeWaitEntry opens at the close of the first candle at or after alert+WaitMs.
type TimeWaitEntry struct {
	WaitMs int64
}

// NewTimeWaitEntry creates a new TimeWaitEntry.
func NewTimeWaitEntry(waitMs int64) *TimeWaitEntry {
	return &TimeWaitEntry{WaitMs: waitMs}
}

// ID returns the strategy identifier including parameters.
func (s *TimeWaitEntry) ID() string {
	return fmt.Sprintf("%s_%dms", domain.EntryTypeTimeWait, s.WaitMs)
}

// Enter fills at the close of the first eligible candle.
func (s *TimeWaitEntry) Enter(input *EntryInput) *domain.EntryOutcome {
	if len(input.Candles) == 0 {
		return missed(domain.MissedNoCandles)
	}

	due := input.AlertTimeMs + s.WaitMs
	for i, c := range input.Candles {
		if c.TimestampMs >= due {
			return filled(input, i, c.Close)
		}
	}
	return missed(domain.MissedObservationWindowEnded)
}

// LimitOrderEntry fills at LimitPrice on the first candle whose range contains it.
type LimitOrderEntry struct {
	LimitPrice float64
	MaxWaitMs  *int64
}

// NewLimitOrderEntry creates a new LimitOrderEntry.
func NewLimitOrderEntry(limitPrice float64, maxWaitMs *int64) *LimitOrderEntry {
	return &LimitOrderEntry{LimitPrice: limitPrice, MaxWaitMs: maxWaitMs}
}

// ID returns the strategy identifier including parameters.
func (s *LimitOrderEntry) ID() string {
	return fmt.Sprintf("%s_%g%s", domain.EntryTypeLimitOrder, s.LimitPrice, waitSuffix(s.MaxWaitMs))
}

// Enter fires when low <= limit <= high.
func (s *LimitOrderEntry) Enter(input *EntryInput) *domain.EntryOutcome {
	if len(input.Candles) == 0 {
		return missed(domain.MissedNoCandles)
	}

	for i, c := range input.Candles {
		if timedOut(c, input.AlertTimeMs, s.MaxWaitMs) {
			return missed(timeoutReason(*s.MaxWaitMs))
		}
		if c.Low <= s.LimitPrice && s.LimitPrice <= c.High {
			return filled(input, i, s.LimitPrice)
		}
	}
	return missed(domain.MissedLimitNeverFilled)
}

// filled builds an entry on candle i; the exit sees only candles after it.
func filled(input *EntryInput, i int, price float64) *domain.EntryOutcome {
	c := input.Candles[i]
	return &domain.EntryOutcome{
		Occurred:      true,
		Price:         price,
		TimestampMs:   c.TimestampMs,
		TimeToEntryMs: c.TimestampMs - input.AlertTimeMs,
		Remaining:     input.Candles[i+1:],
	}
}

func missed(reason string) *domain.EntryOutcome {
	return &domain.EntryOutcome{MissedReason: reason}
}

func timedOut(c *domain.Candle, alertMs int64, maxWaitMs *int64) bool {
	return maxWaitMs != nil && c.TimestampMs-alertMs >= *maxWaitMs
}

// timeoutReason formats e.g. "timeout_4h" or "timeout_0.5h".
func timeoutReason(maxWaitMs int64) string {
	hours := float64(maxWaitMs) / 3_600_000
	return domain.MissedTimeoutPrefix + strconv.FormatFloat(hours, 'f', -1, 64) + "h"
}

func waitSuffix(maxWaitMs *int64) string {
	if maxWaitMs == nil {
		return ""
	}
	return fmt.Sprintf("_wait%dms", *maxWaitMs)
}

var (
	_ EntryStrategy = (*ImmediateEntry)(nil)
	_ EntryStrategy = (*DipWaitEntry)(nil)
	_ EntryStrategy = (*TimeWaitEntry)(nil)
	_ EntryStrategy = (*LimitOrderEntry)(nil)
)
