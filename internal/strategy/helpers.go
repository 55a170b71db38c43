package strategy

import (
	"alert-backtest-lab/internal/domain"
)

// pathTracker accumulates per-candle facts shared by every exit strategy:
// the running peak, milestone flags and the all-candle high.
type pathTracker struct {
	entry      float64
	peak       float64
	ath        float64
	milestones domain.Milestones
}

func newPathTracker(input *ExitInput) *pathTracker {
	t := &pathTracker{
		entry: input.EntryPrice,
		peak:  input.EntryPrice,
		ath:   input.EntryPrice,
	}
	for _, c := range input.Candles {
		if c.High > t.ath {
			t.ath = c.High
		}
	}
	return t
}

// observe records the candle's high before any exit decision is made on it.
func (t *pathTracker) observe(c *domain.Candle) {
	if c.High > t.peak {
		t.peak = c.High
	}
	for _, m := range domain.MilestoneMultiples {
		if c.High >= float64(m)*t.entry {
			t.milestones.Set(m)
		}
	}
}

func (t *pathTracker) exit(price float64, c *domain.Candle, reason string) *domain.ExitOutcome {
	return &domain.ExitOutcome{
		Price:        price,
		TimestampMs:  c.TimestampMs,
		Reason:       reason,
		PeakMultiple: t.multiple(t.peak),
		ATHMultiple:  t.multiple(t.ath),
		Milestones:   t.milestones,
	}
}

// endOfData closes at the last candle's close.
func (t *pathTracker) endOfData(candles []*domain.Candle) *domain.ExitOutcome {
	last := candles[len(candles)-1]
	return t.exit(last.Close, last, domain.ExitReasonEndOfData)
}

func (t *pathTracker) multiple(price float64) float64 {
	if t.entry <= 0 {
		return 0
	}
	return price / t.entry
}

// noData is the exit for a position that has no candles after entry.
func noData(input *ExitInput) *domain.ExitOutcome {
	return &domain.ExitOutcome{
		Price:        input.EntryPrice,
		TimestampMs:  input.EntryTimeMs,
		Reason:       domain.ExitReasonNoData,
		PeakMultiple: 1,
		ATHMultiple:  1,
	}
}

// ConfigID joins the strategy pair and stop reference into one identifier.
func ConfigID(entry EntryStrategy, exit ExitStrategy, ref domain.StopReference) string {
	return entry.ID() + "|" + exit.ID() + "|" + string(ref)
}
