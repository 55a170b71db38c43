package strategy

import (
	"alert-backtest-lab/internal/domain"
)

// EntryStrategy decides when and at what price a position opens.
type EntryStrategy interface {
	// Enter scans the window forward once and reports the fill or the reason it was missed.
	Enter(input *EntryInput) *domain.EntryOutcome

	// ID returns strategy identifier (includes parameters).
	ID() string
}

// ExitStrategy decides when and at what price a position closes.
type ExitStrategy interface {
	// Exit walks candles after entry once and reports the exit.
	Exit(input *ExitInput) *domain.ExitOutcome

	// ID returns strategy identifier (includes parameters).
	ID() string
}

// EntryInput holds the windowed candles visible to an entry decision.
type EntryInput struct {
	Candles     []*domain.Candle // window starting at the aligned entry time
	AlertPrice  float64
	AlertTimeMs int64
}

// ExitInput holds candles strictly after the entry candle.
type ExitInput struct {
	Candles        []*domain.Candle
	EntryPrice     float64 // realized fill, base of milestones and multiples
	EntryTimeMs    int64
	ReferencePrice float64 // base of stop and target levels
}
